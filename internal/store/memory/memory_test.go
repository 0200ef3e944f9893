package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/store"
	"github.com/MrSnakeDoc/confsync/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_ = s.SaveUser(ctx, domain.User{ID: string(rune('a' + id)), ConferenceID: "c"})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.ListConferences(ctx)
		}()
	}
	wg.Wait()
}

func TestListLecturersReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.ReplaceLecturers(ctx, "c", []domain.Lecturer{{ID: "l", SessionIDs: []string{"s"}}})
	got, _ := s.ListLecturers(ctx, "c")
	got[0].SessionIDs[0] = "mutated"

	again, _ := s.ListLecturers(ctx, "c")
	if again[0].SessionIDs[0] != "s" {
		t.Error("ListLecturers() should not expose internal slices")
	}
}
