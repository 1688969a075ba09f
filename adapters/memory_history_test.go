package adapters

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

func TestMemoryHistoryRepository_RecordAndRecent(t *testing.T) {
	repo := NewMemoryHistoryRepository(3)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		entry := entities.NewDialogueEntry(fmt.Sprintf("line %d", i), fmt.Sprintf("บรรทัด %d", i), "Aria", 61)
		ids = append(ids, entry.ID)
		if err := repo.Record(ctx, entry); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	if repo.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", repo.Len())
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Original != "line 4" || recent[1].Original != "line 3" {
		t.Errorf("Expected newest first, got %+v", recent)
	}

	if _, err := repo.GetByID(ctx, ids[0]); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected evicted entry to be not found, got %v", err)
	}

	got, err := repo.GetByID(ctx, ids[4])
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Translated != "บรรทัด 4" {
		t.Errorf("Expected translated text, got %s", got.Translated)
	}
}

func TestMemoryHistoryRepository_Rejects(t *testing.T) {
	repo := NewMemoryHistoryRepository(0)
	ctx := context.Background()

	if err := repo.Record(ctx, nil); err == nil {
		t.Error("Expected error for nil entry")
	}
	if err := repo.Record(ctx, &entities.DialogueEntry{ID: "x"}); err == nil {
		t.Error("Expected validation error for empty original")
	}

	entry := entities.NewDialogueEntry("Hello", "สวัสดี", "", 61)
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := repo.Record(ctx, entry); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}
}

func TestMemoryHistoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryHistoryRepository(10)
	ctx := context.Background()

	entry := entities.NewDialogueEntry("Hello", "สวัสดี", "", 61)
	_ = repo.Record(ctx, entry)
	entry.Translated = "changed"

	got, _ := repo.GetByID(ctx, entry.ID)
	if got.Translated != "สวัสดี" {
		t.Errorf("Expected stored copy to be unaffected, got %s", got.Translated)
	}
}
