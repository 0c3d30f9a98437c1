package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	PacketExt         = ".tmp"
	ManifestSeparator = "|"
)

var ErrMissingPacket = errors.New("missing packet")

// PacketName is the name of the index'th (0-based) packet of the archive whose
// name without extension is base.
func PacketName(index int, base string) string {
	return fmt.Sprintf("%d-%s%s", index, base, PacketExt)
}

// ParsePacketName returns the index and archive base name of a packet.
func ParsePacketName(name string) (int, string, error) {
	name = filepath.Base(name)
	if !strings.HasSuffix(name, PacketExt) {
		return 0, "", fmt.Errorf("%s is not a packet", name)
	}

	idx, base, found := strings.Cut(strings.TrimSuffix(name, PacketExt), "-")
	if !found || base == "" {
		return 0, "", fmt.Errorf("%s is not a packet", name)
	}

	index, err := strconv.Atoi(idx)
	if err != nil || index < 0 {
		return 0, "", fmt.Errorf("packet %s has bad index %q", name, idx)
	}

	return index, base, nil
}

func IsPacket(name string) bool {
	_, _, err := ParsePacketName(name)
	return err == nil
}

// Split divides the archive at path into consecutive packets of at most
// maxSize bytes, written next to it. Packet names are returned in index order.
// An empty archive yields a single empty packet.
func Split(path string, maxSize int64) ([]string, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("invalid packet size %d", maxSize)
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var packets []string
	for i := 0; ; i++ {
		name := PacketName(i, base)
		n, err := writePacket(filepath.Join(dir, name), in, maxSize)
		if err != nil {
			return packets, err
		}

		if n == 0 && i > 0 {
			_ = os.Remove(filepath.Join(dir, name))
			break
		}

		packets = append(packets, name)
		if n < maxSize {
			break
		}
	}

	return packets, nil
}

func writePacket(path string, in io.Reader, maxSize int64) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.CopyN(out, in, maxSize)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = out.Close()
		return n, err
	}

	return n, out.Close()
}

// Join concatenates the packets, found in dir, in ascending index order into
// {base}.zip in dir and returns that name. Each packet is removed once it has
// been copied. Packets must share a base name and have contiguous indexes
// starting at 0.
func Join(dir string, packets []string) (string, error) {
	if len(packets) == 0 {
		return "", fmt.Errorf("%w: no packets to join", ErrMissingPacket)
	}

	type packet struct {
		index int
		name  string
	}

	var (
		sorted []packet
		base   string
	)

	for _, name := range packets {
		index, b, err := ParsePacketName(name)
		if err != nil {
			return "", err
		}

		if base == "" {
			base = b
		} else if b != base {
			return "", fmt.Errorf("packet %s does not belong to archive %s", name, base)
		}

		sorted = append(sorted, packet{index: index, name: filepath.Base(name)})
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].index < sorted[j].index })
	for i, p := range sorted {
		if p.index != i {
			return "", fmt.Errorf("%w: archive %s packet %d", ErrMissingPacket, base, i)
		}
	}

	archiveName := base + ".zip"
	out, err := os.Create(filepath.Join(dir, archiveName))
	if err != nil {
		return "", err
	}

	for _, p := range sorted {
		if err := appendPacket(out, filepath.Join(dir, p.name)); err != nil {
			_ = out.Close()
			return "", err
		}
	}

	return archiveName, out.Close()
}

func appendPacket(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = in.Close()
		return err
	}

	_ = in.Close()
	return os.Remove(path)
}

// ManifestEntry joins the packet names of one split archive into a single
// manifest entry. A single name is its own entry.
func ManifestEntry(names []string) string {
	return strings.Join(names, ManifestSeparator)
}

// ParseManifestEntry splits a manifest entry into its file names.
func ParseManifestEntry(entry string) []string {
	return strings.Split(entry, ManifestSeparator)
}
