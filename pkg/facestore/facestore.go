// Package facestore persists reference face encodings, one file per
// student id. Encodings can optionally be encrypted at rest using NaCl
// secretbox with a machine-derived key.
package facestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/recognition"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// FaceData is the stored reference encoding for one student. A student
// has at most one active encoding; saving again overwrites it.
type FaceData struct {
	StudentID  string                 `json:"student_id"`
	Descriptor recognition.Descriptor `json:"descriptor"`
	CapturedAt time.Time              `json:"captured_at"`
}

// ErrNotEnrolled is returned when a student has no stored encoding.
var ErrNotEnrolled = errors.New("no face data for student")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// Store holds per-student encoding files in a directory.
type Store struct {
	dir               string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string, encryptionEnabled bool) (*Store, error) {
	s := &Store{
		dir:               dir,
		encryptionEnabled: encryptionEnabled,
	}

	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		s.encryptionKey = key
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create faces directory: %w", err)
	}

	return s, nil
}

// deriveKey derives an encryption key from machine-specific information,
// tying the encrypted encodings to this machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("attendwatch-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

func (s *Store) path(studentID string) string {
	filename := studentID + ".json"
	if s.encryptionEnabled {
		filename = studentID + ".enc"
	}
	return filepath.Join(s.dir, filename)
}

// Save writes a student's reference encoding, replacing any previous one.
func (s *Store) Save(data FaceData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal face data: %w", err)
	}

	if s.encryptionEnabled {
		raw, err = s.encrypt(raw)
		if err != nil {
			return fmt.Errorf("failed to encrypt face data: %w", err)
		}
	}

	if err := os.WriteFile(s.path(data.StudentID), raw, 0600); err != nil {
		return fmt.Errorf("failed to write face data: %w", err)
	}

	logging.Debugf("Saved face encoding for student: %s", data.StudentID)
	return nil
}

// Load reads a student's reference encoding.
func (s *Store) Load(studentID string) (*FaceData, error) {
	raw, err := os.ReadFile(s.path(studentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to read face data: %w", err)
	}

	if s.encryptionEnabled {
		raw, err = s.decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt face data: %w", err)
		}
	}

	var data FaceData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal face data: %w", err)
	}

	return &data, nil
}

// Delete removes a student's encoding.
func (s *Store) Delete(studentID string) error {
	if err := os.Remove(s.path(studentID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("failed to delete face data: %w", err)
	}
	logging.Infof("Deleted face encoding for student: %s", studentID)
	return nil
}

// Exists reports whether a student has a stored encoding.
func (s *Store) Exists(studentID string) bool {
	_, err := os.Stat(s.path(studentID))
	return err == nil
}

// List returns the ids of all students with stored encodings.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list face encodings: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		} else if strings.HasSuffix(name, ".enc") {
			ids = append(ids, strings.TrimSuffix(name, ".enc"))
		}
	}

	return ids, nil
}

// encrypt encrypts data using NaCl secretbox.
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &s.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
