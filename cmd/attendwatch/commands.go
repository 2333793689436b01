package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/attendwatch/attendwatch/pkg/attendance"
	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/checkin"
	"github.com/attendwatch/attendwatch/pkg/config"
	"github.com/attendwatch/attendwatch/pkg/enroll"
	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/gallery"
	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/monitor"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

// stores bundles the persistence layers every command needs.
type stores struct {
	reg    *registry.Registry
	faces  *facestore.Store
	ledger *attendance.Ledger
}

func openStores(cfg *config.Config) (*stores, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	faces, err := facestore.New(cfg.FacesDir(), cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, err
	}

	window := attendance.ParseEventWindow(
		cfg.Event.Date, cfg.Event.Start, cfg.Event.End,
		cfg.Event.LateThresholdMinutes, cfg.Event.EarlyLeaveThresholdSeconds,
	)

	return &stores{
		reg:    registry.New(cfg.StudentsPath()),
		faces:  faces,
		ledger: attendance.NewLedger(attendance.NewExcelStore(cfg.AttendancePath()), window, cfg.Monitoring.UpdateInterval()),
	}, nil
}

func openDetector(cfg *config.Config) (*recognition.DlibDetector, error) {
	det := recognition.NewDetector()
	if err := det.LoadModels(cfg.Processing.ModelPath); err != nil {
		return nil, err
	}
	return det, nil
}

func openStream(cfg *config.Config, downscale float64) (*camera.Stream, error) {
	dev := camera.NewGocvDevice(cfg.Camera.Source, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS, downscale)
	stream := camera.NewStream(cfg.Camera.Source, dev)
	if err := stream.Start(); err != nil {
		return nil, err
	}
	return stream, nil
}

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	recapture := fs.Bool("recapture", false, "Replace the stored encoding of an already registered student")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()

	if *recapture {
		if len(args) < 1 {
			return fmt.Errorf("usage: attendwatch register -recapture <student-id>")
		}
	} else if len(args) < 2 {
		return fmt.Errorf("usage: attendwatch register <student-id> <name>")
	}
	studentID := args[0]

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	det, err := openDetector(cfg)
	if err != nil {
		return err
	}
	defer det.Close()

	// Registration captures at full resolution; no downscaled copy needed.
	stream, err := openStream(cfg, 1)
	if err != nil {
		return err
	}
	defer stream.Stop()

	g := gallery.New()
	enroller := enroll.New(stream, det, st.reg, st.faces, g)

	fmt.Println("Look at the camera. Capturing reference face...")

	if *recapture {
		if err := enroller.Recapture(studentID); err != nil {
			return err
		}
		fmt.Printf("Updated reference face for student %s\n", studentID)
		return nil
	}

	name := strings.Join(args[1:], " ")
	if err := enroller.Register(studentID, name); err != nil {
		return err
	}
	fmt.Printf("Registered %s (%s)\n", name, studentID)
	return nil
}

func cmdCheckin(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: attendwatch checkin <student-id>")
	}
	studentID := args[0]

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	det, err := openDetector(cfg)
	if err != nil {
		return err
	}
	defer det.Close()

	stream, err := openStream(cfg, 1)
	if err != nil {
		return err
	}
	defer stream.Stop()

	sys := checkin.New(stream, det, st.reg, st.faces, st.ledger, cfg.Processing.CheckinTolerance)

	fmt.Println("Look at the camera...")
	if err := sys.CheckIn(studentID); err != nil {
		return err
	}

	rec, err := st.ledger.Get(studentID)
	if err != nil {
		return err
	}
	fmt.Printf("Checked in %s (%s) at %s, status %s\n",
		rec.Name, rec.StudentID, rec.CheckIn.Format("15:04:05"), rec.Status)
	return nil
}

func cmdMonitor(args []string) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	det, err := openDetector(cfg)
	if err != nil {
		return err
	}
	defer det.Close()

	g := gallery.New()
	if err := g.Rebuild(st.reg, st.faces); err != nil {
		return err
	}
	if g.Size() == 0 {
		fmt.Println("Warning: no enrolled students, nothing can be recognized.")
	}

	stream, err := openStream(cfg, cfg.Processing.Downscale)
	if err != nil {
		return err
	}
	defer stream.Stop()

	loop := monitor.New(stream, det, g, st.ledger, monitor.Config{
		SkipFrames:           cfg.Processing.SkipFrames,
		RecognitionThreshold: cfg.Processing.RecognitionThreshold,
		ReconcileInterval:    cfg.Monitoring.ReconcileInterval(),
		UnseenTimeout:        cfg.Monitoring.UnseenTimeout(),
		FrameWait:            time.Second,
		StopTimeout:          2 * time.Second,
	})
	loop.OnSighting = func(s monitor.Sighting) {
		fmt.Printf("[%s] %s (%s) %.1f%%\n",
			time.Now().Format("15:04:05"), s.Match.Name, s.Match.ID, s.Match.Confidence)
	}

	if err := loop.Start(); err != nil {
		return err
	}

	fmt.Printf("Monitoring session %s started (window %s). Press Ctrl+C to stop.\n",
		loop.SessionID(), st.ledger.Window())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("\nStopping...")

	loop.Stop()
	return nil
}

func cmdList(args []string) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	students, err := st.reg.Load()
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Println("No students registered.")
		return nil
	}

	fmt.Printf("%-12s %-24s %s\n", "ID", "NAME", "ENROLLED")
	for _, s := range students {
		enrolled := "no"
		if st.faces.Exists(s.ID) {
			enrolled = "yes"
		}
		fmt.Printf("%-12s %-24s %s\n", s.ID, s.Name, enrolled)
	}
	fmt.Printf("\n%d student(s)\n", len(students))
	return nil
}

func cmdEdit(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: attendwatch edit <student-id> <new-id> <new-name>")
	}
	oldID := args[0]
	newID := args[1]
	newName := strings.Join(args[2:], " ")

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	// No capture involved, so no camera or detector is wired in.
	enroller := enroll.New(nil, nil, st.reg, st.faces, gallery.New())
	if err := enroller.Update(oldID, registry.Student{ID: newID, Name: newName}); err != nil {
		return err
	}
	fmt.Printf("Updated student %s -> %s (%s)\n", oldID, newID, newName)
	return nil
}

func cmdRemove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: attendwatch remove <student-id>")
	}
	studentID := args[0]

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	enroller := enroll.New(nil, nil, st.reg, st.faces, gallery.New())
	if err := enroller.Remove(studentID); err != nil {
		return err
	}
	fmt.Printf("Removed student %s\n", studentID)
	return nil
}

func cmdReport(args []string) error {
	var date string
	var status attendance.Status
	for _, arg := range args {
		if _, err := time.Parse("2006-01-02", arg); err == nil {
			date = arg
			continue
		}
		s := attendance.NormalizeStatus(strings.ToUpper(arg))
		if string(s) != strings.ToUpper(arg) {
			return fmt.Errorf("unknown status %q (PRESENT, LATE, LEFT_EARLY, ABSENT)", arg)
		}
		status = s
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	records, counts := st.ledger.Report(date, status)

	fmt.Printf("%-12s %-20s %-20s %-20s %-11s %s\n",
		"ID", "NAME", "CHECK-IN", "LAST SEEN", "STATUS", "TOTAL")
	for _, rec := range records {
		fmt.Printf("%-12s %-20s %-20s %-20s %-11s %s\n",
			rec.StudentID, rec.Name,
			formatReportTime(rec.CheckIn), formatReportTime(rec.LastSeen),
			rec.Status, rec.TotalPresent.Round(time.Second))
	}

	fmt.Printf("\nPresent: %d  Late: %d  Left early: %d  Absent: %d\n",
		counts[attendance.StatusPresent], counts[attendance.StatusLate],
		counts[attendance.StatusLeftEarly], counts[attendance.StatusAbsent])
	return nil
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func cmdCorrect(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: attendwatch correct <student-id> <status>")
	}
	studentID := args[0]
	raw := strings.ToUpper(args[1])
	status := attendance.NormalizeStatus(raw)
	if string(status) != raw {
		return fmt.Errorf("unknown status %q (PRESENT, LATE, LEFT_EARLY, ABSENT)", args[1])
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	if err := st.ledger.Correct(studentID, status); err != nil {
		return err
	}
	fmt.Printf("Set status of student %s to %s\n", studentID, status)
	return nil
}

func cmdReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "Confirm the reset without prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*confirm {
		fmt.Print("This erases all attendance records. Type 'yes' to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	if err := st.ledger.Reset(); err != nil {
		return err
	}
	logging.Info("Attendance log reset by operator")
	fmt.Println("Attendance log reset.")
	return nil
}
