package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/pubreview/internal/index"
	"github.com/matsen/pubreview/internal/records"
)

func TestSyncIndex(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "results.jsonl")
	content := `{"member_id":"A","results":[{"title":"Graph theory","year":"2001"}]}` + "\n"
	if err := os.WriteFile(dataPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	loads := 0
	load := func() records.Table {
		loads++
		tbl, err := records.Load(dataPath)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return tbl
	}

	ix, err := index.Open(filepath.Join(dir, ".pubreview", "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	rebuilt, err := syncIndex(ix, dataPath, load)
	if err != nil || !rebuilt {
		t.Fatalf("first syncIndex = %v, %v; want rebuild", rebuilt, err)
	}
	rebuilt, err = syncIndex(ix, dataPath, load)
	if err != nil || rebuilt {
		t.Fatalf("second syncIndex = %v, %v; want no rebuild", rebuilt, err)
	}
	if loads != 1 {
		t.Errorf("loaded %d times, want 1", loads)
	}

	content += `{"member_id":"B","results":[{"title":"Other"}]}` + "\n"
	if err := os.WriteFile(dataPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if rebuilt, err = syncIndex(ix, dataPath, load); err != nil || !rebuilt {
		t.Fatalf("syncIndex after edit = %v, %v; want rebuild", rebuilt, err)
	}
	hits, err := ix.Search("other", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].MemberID != "B" {
		t.Errorf("Search(other) = %+v", hits)
	}
}
