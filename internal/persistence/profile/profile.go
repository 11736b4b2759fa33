// Package profile stores a player's balance and inventory between runs as two small text files.
//
// The balance file holds a single integer line. The inventory file holds one "id,count,aux" line
// per slot in slot order. A missing file loads as defaults.
package profile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tilecraft.ai/internal/sim/inventory"
)

const (
	MoneyFile     = "money.txt"
	InventoryFile = "inventory.txt"
)

type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

// LoadMoney returns 0 when the file does not exist.
func (s *Store) LoadMoney() (int, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, MoneyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", MoneyFile, err)
	}
	return n, nil
}

func (s *Store) SaveMoney(n int) error {
	return writeAtomic(filepath.Join(s.dir, MoneyFile), []byte(strconv.Itoa(n)+"\n"))
}

// LoadInventory fills inv from the inventory file. A missing file leaves inv untouched. Line n is
// slot n-1, and a blank line loads as an empty slot. Lines past inv.Len() are ignored; a malformed
// line aborts the load and reports its line number.
func (s *Store) LoadInventory(inv *inventory.Inventory) error {
	f, err := os.Open(filepath.Join(s.dir, InventoryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	slots := make([]inventory.Slot, 0, inv.Len())
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() && len(slots) < inv.Len() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			// Still a slot position: an empty slot.
			slots = append(slots, inventory.Slot{})
			continue
		}
		slot, err := parseSlot(text)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", InventoryFile, line, err)
		}
		slots = append(slots, slot)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	for i, sl := range slots {
		inv.Set(i, sl.ID, sl.Count, sl.Aux)
	}
	return nil
}

func (s *Store) SaveInventory(inv *inventory.Inventory) error {
	var buf bytes.Buffer
	for _, sl := range inv.Slots() {
		fmt.Fprintf(&buf, "%d,%d,%d\n", sl.ID, sl.Count, sl.Aux)
	}
	return writeAtomic(filepath.Join(s.dir, InventoryFile), buf.Bytes())
}

func parseSlot(text string) (inventory.Slot, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return inventory.Slot{}, fmt.Errorf("want id,count,aux, got %q", text)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return inventory.Slot{}, err
		}
		v[i] = n
	}
	return inventory.Slot{ID: v[0], Count: v[1], Aux: v[2]}, nil
}

func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
