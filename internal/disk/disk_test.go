package disk

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleMounts = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda2 / ext4 rw,relatime 0 0
tmpfs /tmp tmpfs rw,nosuid,nodev 0 0
/dev/sdb1 /srv/media ext4 rw,relatime 0 0
//nas/photos /mnt/My\040Photos cifs rw 0 0
`

func parse(t *testing.T, s string) *MountTable {
	t.Helper()
	table, err := ParseMounts(strings.NewReader(s))
	if err != nil {
		t.Fatalf("ParseMounts: %v", err)
	}
	return table
}

func TestParseMounts(t *testing.T) {
	table := parse(t, sampleMounts)
	if table.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", table.Len())
	}

	want := []Mount{
		{Device: "/dev/sda2", Point: "/", Type: "ext4"},
		{Device: "/dev/sdb1", Point: "/srv/media", Type: "ext4"},
		{Device: "//nas/photos", Point: "/mnt/My Photos", Type: "cifs"},
	}
	if diff := cmp.Diff(want, table.Data()); diff != "" {
		t.Errorf("Data() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMountsRejectsShortLine(t *testing.T) {
	if _, err := ParseMounts(strings.NewReader("/dev/sda1 /\n")); err == nil {
		t.Fatal("expected an error for a two-field line")
	}
}

func TestMountLookup(t *testing.T) {
	table := parse(t, sampleMounts)

	tests := []struct {
		path string
		want string
	}{
		{"/srv/media/photos/a.jpg", "/srv/media"},
		{"/srv/media", "/srv/media"},
		{"/srv/mediafiles/x", "/"},
		{"/tmp/trash/x", "/tmp"},
		{"/mnt/My Photos/2020", "/mnt/My Photos"},
		{"/does/not/exist", "/"},
	}
	for _, tt := range tests {
		m, ok := table.Of(tt.path)
		if !ok || m.Point != tt.want {
			t.Errorf("Of(%s) = %v, %v; want %s", tt.path, m, ok, tt.want)
		}
	}

	if !table.IsMount("/srv/media/") || table.IsMount("/srv") {
		t.Error("IsMount misreports /srv/media or /srv")
	}
	if !table.SameMount("/srv/media/a", "/srv/media/b/c") {
		t.Error("paths below one mount should share it")
	}
	if table.SameMount("/srv/media/a", "/tmp/a") {
		t.Error("paths on different mounts reported as the same")
	}
}

func TestUnescape(t *testing.T) {
	tests := map[string]string{
		`/plain`:         "/plain",
		`/a\040b`:        "/a b",
		`/tab\011x`:      "/tab\tx",
		`/short\04`:      `/short\04`,
		`/not\089octal`:  `/not\089octal`,
		`/back\134slash`: `/back\slash`,
	}
	for in, want := range tests {
		if got := unescape(in); got != want {
			t.Errorf("unescape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetUsage(t *testing.T) {
	u, err := GetUsage(t.TempDir())
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if u.TotalBytes <= 0 || u.FreeBytes < 0 || u.FreeBytes > u.TotalBytes {
		t.Errorf("implausible usage %+v", u)
	}
	if u.UsedPercent < 0 || u.UsedPercent > 100 {
		t.Errorf("UsedPercent = %f", u.UsedPercent)
	}

	if _, err := GetUsage("/does/not/exist"); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestIsStale(t *testing.T) {
	if IsStale(t.TempDir(), time.Second) {
		t.Error("local directory reported stale")
	}
	if IsStale("/does/not/exist", time.Second) {
		t.Error("missing path is not a stale mount")
	}
}
