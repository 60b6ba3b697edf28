package sstable

import (
	"path/filepath"
	"testing"

	"github.com/saturnkv/saturnkv/memtable"
)

func buildTable(t *testing.T, dir string, id uint64, mutate func(*memtable.Memtable)) *Table {
	t.Helper()
	m := memtable.New(memtable.DefaultThreshold)
	mutate(m)
	drained := m.Drain()

	table, err := Write(filepath.Join(dir, FileName(id)), id, drained)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestWriteAndGetLiveEntry(t *testing.T) {
	dir := t.TempDir()
	table := buildTable(t, dir, 0, func(m *memtable.Memtable) {
		m.Insert([]byte("key1"), []byte("value1"))
		m.Insert([]byte("key2"), []byte("value2"))
	})

	value, lookup, err := table.Get([]byte("key1"))
	if err != nil {
		t.Fatal(err)
	}
	if lookup != FoundValue || string(value) != "value1" {
		t.Errorf("Get(key1) = (%q, %v), want (value1, FoundValue)", value, lookup)
	}

	value, lookup, err = table.Get([]byte("key2"))
	if err != nil {
		t.Fatal(err)
	}
	if lookup != FoundValue || string(value) != "value2" {
		t.Errorf("Get(key2) = (%q, %v), want (value2, FoundValue)", value, lookup)
	}
}

func TestGetTombstoneAndMissingKey(t *testing.T) {
	dir := t.TempDir()
	table := buildTable(t, dir, 0, func(m *memtable.Memtable) {
		m.Insert([]byte("key1"), []byte("value1"))
		m.Delete([]byte("key3"))
	})

	_, lookup, err := table.Get([]byte("key3"))
	if err != nil {
		t.Fatal(err)
	}
	if lookup != FoundTombstone {
		t.Errorf("Get(key3) lookup = %v, want FoundTombstone", lookup)
	}

	_, lookup, err = table.Get([]byte("key4"))
	if err != nil {
		t.Fatal(err)
	}
	if lookup != NotPresent {
		t.Errorf("Get(key4) lookup = %v, want NotPresent", lookup)
	}
}

func TestLoadRebuildsIndexAndBloom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(0))
	buildTable(t, dir, 0, func(m *memtable.Memtable) {
		m.Insert([]byte("a"), []byte("1"))
		m.Insert([]byte("b"), []byte("2"))
		m.Delete([]byte("c"))
	})

	loaded, err := Load(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	value, lookup, err := loaded.Get([]byte("a"))
	if err != nil || lookup != FoundValue || string(value) != "1" {
		t.Errorf("Get(a) = (%q, %v, %v)", value, lookup, err)
	}
	_, lookup, err = loaded.Get([]byte("c"))
	if err != nil || lookup != FoundTombstone {
		t.Errorf("Get(c) = (%v, %v)", lookup, err)
	}
	_, lookup, err = loaded.Get([]byte("missing"))
	if err != nil || lookup != NotPresent {
		t.Errorf("Get(missing) = (%v, %v)", lookup, err)
	}
}

func TestGetUsesDescriptorCache(t *testing.T) {
	dir := t.TempDir()
	table := buildTable(t, dir, 0, func(m *memtable.Memtable) {
		m.Insert([]byte("key"), []byte("value"))
	})

	cache := NewDescriptorCache(4)
	defer cache.Close()
	table.SetDescriptorCache(cache)

	for i := 0; i < 5; i++ {
		value, lookup, err := table.Get([]byte("key"))
		if err != nil || lookup != FoundValue || string(value) != "value" {
			t.Fatalf("Get(key) iteration %d = (%q, %v, %v)", i, value, lookup, err)
		}
	}
}
