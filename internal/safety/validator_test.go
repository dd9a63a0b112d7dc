package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestProtectedPathBlocking verifies protected paths are blocked
func TestProtectedPathBlocking(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root slash", "/", true},
		{"etc", "/etc", true},
		{"etc subdir", "/etc/ssh", true},
		{"bin file", "/bin/bash", true},
		{"usr local", "/usr/local", true},
		{"boot grub", "/boot/grub2", true},
		{"lib64", "/lib64", true},
		{"proc", "/proc/self", true},
		{"dupsweep config", "/etc/dupsweep/config.yaml", true},
		{"dupsweep history", "/var/lib/dupsweep/history.db", true},
		{"tmp allowed", "/tmp", false},
		{"tmp file", "/tmp/file.txt", false},
		{"var tmp", "/var/tmp", false},
		{"home user", "/home/user/photos/a.jpg", false},
		{"similar name", "/etcetera/file", false},
	}

	protected := defaultProtected(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsProtectedPath(tt.path, protected)
			if result != tt.expected {
				t.Errorf("IsProtectedPath(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestExtraProtectedPaths(t *testing.T) {
	v := NewValidator([]string{"/data"}, []string{"/data/originals"})
	if !IsProtectedPath("/data/originals/a.jpg", v.ProtectedPaths) {
		t.Error("extra protected path not honored")
	}
	if IsProtectedPath("/data/copies/a.jpg", v.ProtectedPaths) {
		t.Error("sibling of extra protected path blocked")
	}
}

// TestAllowedRootEnforcement verifies paths are restricted to allowed roots
func TestAllowedRootEnforcement(t *testing.T) {
	allowed := []string{"/tmp/allowed", "/srv/media"}

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"inside allowed tmp", "/tmp/allowed/file.txt", true},
		{"inside allowed srv", "/srv/media/photo.jpg", true},
		{"allowed root exact", "/tmp/allowed", true},
		{"outside allowed", "/tmp/notallowed/file.txt", false},
		{"parent of allowed", "/tmp", false},
		{"completely different", "/home/user/file.txt", false},
		{"root", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWithinAllowedRoots(tt.path, allowed)
			if result != tt.expected {
				t.Errorf("IsWithinAllowedRoots(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestPathNormalization verifies paths are normalized correctly
func TestPathNormalization(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"absolute path", "/tmp/file.txt", false},
		{"relative path", "file.txt", false},
		{"path with dots", "/tmp/./file.txt", false},
		{"empty path", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePath(tt.path)
			if tt.expectError {
				if err == nil {
					t.Errorf("NormalizePath(%s) expected error, got nil", tt.path)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizePath(%s) unexpected error: %v", tt.path, err)
			}
			if !filepath.IsAbs(result) {
				t.Errorf("NormalizePath(%s) = %s, expected absolute path", tt.path, result)
			}
		})
	}
}

// TestTraversalDetection verifies ".." segments are detected
func TestTraversalDetection(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"normal path", "/tmp/file.txt", false},
		{"dotdot parent", "/tmp/../etc/passwd", true},
		{"dotdot at start", "../etc/passwd", true},
		{"dotdot at end", "/tmp/..", true},
		{"single dot ok", "/tmp/./file", false},
		{"dots in name", "/tmp/a..b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectTraversal(tt.path)
			if result != tt.expected {
				t.Errorf("DetectTraversal(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

type tree struct {
	allowed     string
	outside     string
	insideFile  string
	outsideFile string
	fileLink    string
	dirLink     string
}

func makeTree(t *testing.T) tree {
	t.Helper()
	tmp := t.TempDir()
	tr := tree{
		allowed: filepath.Join(tmp, "allowed"),
		outside: filepath.Join(tmp, "outside"),
	}
	for _, d := range []string{tr.allowed, tr.outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	tr.insideFile = filepath.Join(tr.allowed, "copy.txt")
	tr.outsideFile = filepath.Join(tr.outside, "keep_me.txt")
	for _, f := range []string{tr.insideFile, tr.outsideFile} {
		if err := os.WriteFile(f, []byte("data"), 0o644); err != nil {
			t.Fatalf("Failed to create %s: %v", f, err)
		}
	}
	tr.fileLink = filepath.Join(tr.allowed, "file_link")
	if err := os.Symlink(tr.outsideFile, tr.fileLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	tr.dirLink = filepath.Join(tr.allowed, "dir_link")
	if err := os.Symlink(tr.outside, tr.dirLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	return tr
}

// TestSymlinkEscapeDetection verifies symlinks escaping allowed roots are detected
func TestSymlinkEscapeDetection(t *testing.T) {
	tr := makeTree(t)
	allowed := normalizeRoots([]string{tr.allowed})

	tests := []struct {
		name         string
		path         string
		expectEscape bool
		expectError  bool
	}{
		{"file symlink escapes", tr.fileLink, true, false},
		{"parent symlink escapes", filepath.Join(tr.dirLink, "keep_me.txt"), true, false},
		{"regular file inside", tr.insideFile, false, false},
		{"nonexistent path", filepath.Join(tr.allowed, "nonexistent"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escaped, err := DetectSymlinkEscape(tt.path, allowed)
			if tt.expectError {
				if err == nil {
					t.Errorf("DetectSymlinkEscape(%s) expected error, got nil", tt.path)
				}
				return
			}
			if err != nil {
				t.Errorf("DetectSymlinkEscape(%s) unexpected error: %v", tt.path, err)
			}
			if escaped != tt.expectEscape {
				t.Errorf("DetectSymlinkEscape(%s) = %v, expected %v", tt.path, escaped, tt.expectEscape)
			}
		})
	}
}

// TestValidateTarget covers the full contract applied before a duplicate is
// removed or moved away.
func TestValidateTarget(t *testing.T) {
	tr := makeTree(t)
	validator := NewValidator([]string{tr.allowed}, nil)

	tests := []struct {
		name        string
		path        string
		expectError error
	}{
		{"allowed file", tr.insideFile, nil},
		{"outside allowed", tr.outsideFile, ErrOutsideAllowed},
		{"protected /etc", "/etc/passwd", ErrProtectedPath},
		{"protected root", "/", ErrProtectedPath},
		{"symlink itself", tr.fileLink, ErrNotRegular},
		{"directory", tr.allowed, ErrNotRegular},
		{"through symlinked dir", filepath.Join(tr.dirLink, "keep_me.txt"), ErrSymlinkEscape},
		{"traversal attempt", tr.allowed + "/../outside/keep_me.txt", ErrTraversal},
		{"missing file", filepath.Join(tr.allowed, "gone.txt"), ErrInvalidPath},
		{"empty path", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateTarget(tt.path)
			if tt.expectError == nil {
				if err != nil {
					t.Errorf("ValidateTarget(%s) unexpected error: %v", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.expectError) {
				t.Errorf("ValidateTarget(%s) = %v, expected %v", tt.path, err, tt.expectError)
			}
		})
	}
}

func TestValidateDestination(t *testing.T) {
	validator := NewValidator([]string{"/srv/media"}, nil)

	tests := []struct {
		name        string
		dir         string
		expectError error
	}{
		{"outside roots is fine", "/srv/trash", nil},
		{"protected", "/usr/share/trash", ErrProtectedPath},
		{"history dir", "/var/lib/dupsweep/moved", ErrProtectedPath},
		{"traversal", "/srv/trash/../../etc", ErrTraversal},
		{"empty", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDestination(tt.dir)
			if tt.expectError == nil {
				if err != nil {
					t.Errorf("ValidateDestination(%s) unexpected error: %v", tt.dir, err)
				}
				return
			}
			if !errors.Is(err, tt.expectError) {
				t.Errorf("ValidateDestination(%s) = %v, expected %v", tt.dir, err, tt.expectError)
			}
		})
	}
}

// TestHasPathPrefix verifies the path prefix checking logic
func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{"exact match", "/tmp/allowed", "/tmp/allowed", true},
		{"subdirectory", "/tmp/allowed/sub", "/tmp/allowed", true},
		{"not a prefix", "/tmp/other", "/tmp/allowed", false},
		{"partial match", "/tmp/allowedother", "/tmp/allowed", false},
		{"root prefix only matches root", "/tmp", "/", false},
		{"root exact", "/", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasPathPrefix(tt.path, tt.prefix)
			if result != tt.expected {
				t.Errorf("hasPathPrefix(%s, %s) = %v, expected %v", tt.path, tt.prefix, result, tt.expected)
			}
		})
	}
}

func TestIsViolation(t *testing.T) {
	if !IsViolation(fmt.Errorf("move: %w", ErrProtectedPath)) {
		t.Error("wrapped protected path error not recognized")
	}
	if IsViolation(errors.New("disk full")) {
		t.Error("unrelated error reported as violation")
	}
}
