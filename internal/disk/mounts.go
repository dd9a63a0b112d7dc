package disk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ProcMounts is the kernel mount table of the calling process.
const ProcMounts = "/proc/self/mounts"

// Pseudo filesystems that never hold user data.
var systemTypes = map[string]bool{
	"autofs":          true,
	"bpf":             true,
	"cgroup2":         true,
	"configfs":        true,
	"debugfs":         true,
	"devpts":          true,
	"devtmpfs":        true,
	"efivarfs":        true,
	"fuse.gvfsd-fuse": true,
	"fusectl":         true,
	"hugetlbfs":       true,
	"mqueue":          true,
	"proc":            true,
	"pstore":          true,
	"rpc_pipefs":      true,
	"securityfs":      true,
	"selinuxfs":       true,
	"sysfs":           true,
	"tmpfs":           true,
	"tracefs":         true,
}

type Mount struct {
	Device string
	Point  string
	Type   string
}

// IsSystem reports whether the mount is a pseudo filesystem.
func (m Mount) IsSystem() bool { return systemTypes[m.Type] }

func (m Mount) String() string {
	return fmt.Sprintf("%s -> %s %s", m.Point, m.Device, m.Type)
}

// MountTable is a parsed mount table. Later entries shadow earlier ones
// mounted on the same point.
type MountTable struct {
	mounts  []Mount
	byPoint map[string]Mount
}

// ReadMounts parses ProcMounts.
func ReadMounts() (*MountTable, error) {
	f, err := os.Open(ProcMounts)
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	defer f.Close()
	return ParseMounts(f)
}

// ParseMounts reads fstab formatted lines (see proc(5)).
func ParseMounts(r io.Reader) (*MountTable, error) {
	t := &MountTable{byPoint: make(map[string]Mount)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("mount table line %d: expected at least 3 fields, got %d", line, len(fields))
		}
		m := Mount{
			Device: unescape(fields[0]),
			Point:  filepath.Clean(unescape(fields[1])),
			Type:   fields[2],
		}
		t.mounts = append(t.mounts, m)
		t.byPoint[m.Point] = m
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	return t, nil
}

// unescape decodes the octal escapes (\040 for a space) the kernel uses in
// mount table fields.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1:i+4]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

func (t *MountTable) Len() int { return len(t.mounts) }

// Data returns the mounts that are not pseudo filesystems, in table order.
func (t *MountTable) Data() []Mount {
	var out []Mount
	for _, m := range t.mounts {
		if !m.IsSystem() {
			out = append(out, m)
		}
	}
	return out
}

// IsMount reports whether path is a mount point.
func (t *MountTable) IsMount(path string) bool {
	_, ok := t.byPoint[filepath.Clean(path)]
	return ok
}

// Of returns the mount holding path, found by walking up its parents. The
// path does not need to exist.
func (t *MountTable) Of(path string) (Mount, bool) {
	p := filepath.Clean(path)
	for {
		if m, ok := t.byPoint[p]; ok {
			return m, true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return Mount{}, false
		}
		p = parent
	}
}

// SameMount reports whether a and b resolve to the same mount point.
func (t *MountTable) SameMount(a, b string) bool {
	ma, okA := t.Of(a)
	mb, okB := t.Of(b)
	return okA && okB && ma.Point == mb.Point
}
