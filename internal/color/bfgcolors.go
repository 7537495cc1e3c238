package color

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mudesheng/cdbg/internal/graph"
)

// bfgMagic identifies the .bfg_colors binary format, per spec.md 6's
// color-matrix file: a fixed magic, a color-name table, then one
// fixed-width bitset record per unitig that carries at least one
// color.
var bfgMagic = [4]byte{'B', 'F', 'G', 'C'}

const bfgVersion uint32 = 1

// WriteBfgColors serializes store's color assignments for every unitig
// in refs to path in the .bfg_colors format.
func WriteBfgColors(store *Store, refs []graph.UnitigRef, colorNames []string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[WriteBfgColors] create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(bfgMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, bfgVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(store.numColors)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(colorNames))); err != nil {
		return err
	}
	for _, name := range colorNames {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
			return err
		}
		if _, err := w.WriteString(name); err != nil {
			return err
		}
	}

	nWords := words(store.numColors)
	for _, ref := range refs {
		colors := store.GetUnitigColors(ref)
		if len(colors) == 0 {
			continue
		}
		bs := newBitset(store.numColors)
		for _, c := range colors {
			bs.set(c)
		}
		if err := binary.Write(w, binary.LittleEndian, byte(ref.Repr)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ref.ID); err != nil {
			return err
		}
		for i := 0; i < nWords; i++ {
			if err := binary.Write(w, binary.LittleEndian, bs[i]); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// ReadBfgColors reads back a .bfg_colors file, returning the color-name
// table and a store populated with every recorded unitig->color
// assignment.
func ReadBfgColors(path string) (names []string, store *Store, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("[ReadBfgColors] open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, fmt.Errorf("[ReadBfgColors] read magic: %w", err)
	}
	if magic != bfgMagic {
		return nil, nil, fmt.Errorf("[ReadBfgColors] bad magic %q", magic)
	}
	var version, numColors, numNames uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, nil, err
	}
	if version != bfgVersion {
		return nil, nil, fmt.Errorf("[ReadBfgColors] unsupported version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &numColors); err != nil {
		return nil, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &numNames); err != nil {
		return nil, nil, err
	}
	names = make([]string, numNames)
	for i := range names {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, nil, err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, err
		}
		names[i] = string(buf)
	}

	store = NewStore(16, int(numColors))
	nWords := words(int(numColors))
	for {
		var reprByte byte
		if err := binary.Read(r, binary.LittleEndian, &reprByte); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, err
		}
		var id uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, nil, err
		}
		bs := make(bitset, nWords)
		for i := 0; i < nWords; i++ {
			if err := binary.Read(r, binary.LittleEndian, &bs[i]); err != nil {
				return nil, nil, err
			}
		}
		ref := graph.UnitigRef{Repr: graph.Repr(reprByte), ID: id}
		for _, c := range bs.colors() {
			store.SetColor(ref, c)
		}
	}
	return names, store, nil
}
