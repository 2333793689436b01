package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/attendwatch/attendwatch/pkg/config"
	"github.com/attendwatch/attendwatch/pkg/logging"
)

const version = "0.1.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

var (
	cfg      *config.Config
	commands map[string]*Command
)

func init() {
	commands = map[string]*Command{
		"register": {
			Name:        "register",
			Description: "Register a new student and capture their reference face",
			Usage:       "attendwatch register <student-id> <name>",
			Run:         cmdRegister,
		},
		"checkin": {
			Name:        "checkin",
			Description: "Check a student in with 1:1 face verification",
			Usage:       "attendwatch checkin <student-id>",
			Run:         cmdCheckin,
		},
		"monitor": {
			Name:        "monitor",
			Description: "Run continuous attendance monitoring until interrupted",
			Usage:       "attendwatch monitor",
			Run:         cmdMonitor,
		},
		"list": {
			Name:        "list",
			Description: "List registered students",
			Usage:       "attendwatch list",
			Run:         cmdList,
		},
		"edit": {
			Name:        "edit",
			Description: "Rename a student or change their id",
			Usage:       "attendwatch edit <student-id> <new-id> <new-name>",
			Run:         cmdEdit,
		},
		"remove": {
			Name:        "remove",
			Description: "Remove a student and their face data",
			Usage:       "attendwatch remove <student-id>",
			Run:         cmdRemove,
		},
		"report": {
			Name:        "report",
			Description: "Show the attendance report",
			Usage:       "attendwatch report [date] [status]",
			Run:         cmdReport,
		},
		"correct": {
			Name:        "correct",
			Description: "Manually correct a student's attendance status",
			Usage:       "attendwatch correct <student-id> <status>",
			Run:         cmdCorrect,
		},
		"reset": {
			Name:        "reset",
			Description: "Reset the attendance log (requires -confirm)",
			Usage:       "attendwatch reset -confirm",
			Run:         cmdReset,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "attendwatch config",
			Run:         cmdConfig,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "attendwatch version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "attendwatch help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	cfg.ExpandPaths()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("attendwatch v%s starting", version)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("attendwatch - Face Recognition Attendance Monitoring")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Usage: attendwatch [options] <command> [arguments]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <file>   Path to configuration file")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println("\nCommands:")
	for _, name := range []string{"register", "checkin", "monitor", "list", "edit", "remove", "report", "correct", "reset", "config", "version", "help"} {
		cmd := commands[name]
		fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  attendwatch register 1042 \"Alice Example\"")
	fmt.Println("  attendwatch checkin 1042")
	fmt.Println("  attendwatch monitor")
	fmt.Println("\nRun 'attendwatch help <command>' for more information on a command.")
}

func cmdVersion(args []string) error {
	fmt.Printf("attendwatch v%s\n", version)
	fmt.Println("Face Recognition Attendance Monitoring")
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf("Command: %s\n", cmd.Name)
	fmt.Printf("Description: %s\n", cmd.Description)
	fmt.Printf("Usage: %s\n", cmd.Usage)

	switch cmdName {
	case "register":
		fmt.Println("\nRegistration captures one reference face from the camera.")
		fmt.Println("Exactly one face must be visible during capture.")
	case "checkin":
		fmt.Println("\nCheck-in verifies the face in front of the camera against")
		fmt.Println("the encoding stored for the given student id only.")
	case "monitor":
		fmt.Println("\nMonitoring recognizes registered students in the camera feed")
		fmt.Println("and maintains the attendance ledger until Ctrl+C.")
	case "report":
		fmt.Println("\nOptional arguments: a date (YYYY-MM-DD) and a status")
		fmt.Println("(PRESENT, LATE, LEFT_EARLY, ABSENT) to filter by.")
	}

	return nil
}

func cmdConfig(args []string) error {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Camera]")
	fmt.Printf("  Source:          %s\n", cfg.Camera.Source)
	fmt.Printf("  Resolution:      %dx%d @ %d FPS\n", cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	fmt.Println()
	fmt.Println("[Processing]")
	fmt.Printf("  Skip Frames:     %d\n", cfg.Processing.SkipFrames)
	fmt.Printf("  Downscale:       %.2f\n", cfg.Processing.Downscale)
	fmt.Printf("  Threshold:       %.1f%%\n", cfg.Processing.RecognitionThreshold)
	fmt.Printf("  Check-in Tol.:   %.2f\n", cfg.Processing.CheckinTolerance)
	fmt.Printf("  Model Path:      %s\n", cfg.Processing.ModelPath)
	fmt.Println()
	fmt.Println("[Monitoring]")
	fmt.Printf("  Update Interval: %s\n", cfg.Monitoring.UpdateInterval())
	fmt.Printf("  Reconcile:       %s\n", cfg.Monitoring.ReconcileInterval())
	fmt.Printf("  Unseen Timeout:  %s\n", cfg.Monitoring.UnseenTimeout())
	fmt.Println()
	fmt.Println("[Event]")
	fmt.Printf("  Window:          %s - %s\n", cfg.Event.Start, cfg.Event.End)
	fmt.Printf("  Late After:      %d min\n", cfg.Event.LateThresholdMinutes)
	fmt.Printf("  Early Leave:     %d s\n", cfg.Event.EarlyLeaveThresholdSeconds)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("  Attendance:      %s\n", cfg.AttendancePath())
	fmt.Printf("  Students:        %s\n", cfg.StudentsPath())
	fmt.Printf("  Encryption:      %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:           %s\n", cfg.Logging.Level)
	fmt.Printf("  File:            %s\n", cfg.Logging.File)

	return nil
}
