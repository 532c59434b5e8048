package timeline

import (
	"reflect"
	"testing"

	"github.com/resolving/chatsync/pkg/models"
)

func msg(id, userID int64, text string) models.Message {
	return models.Message{ID: id, UserID: userID, Username: "u", Role: models.RoleUser, Text: text, Timestamp: "12:00"}
}

func TestTimeline_AppendOrder(t *testing.T) {
	tl := New(nil)
	tl.Append(msg(1, 7, "a"))
	tl.Append(msg(2, 8, "b"))
	tl.Append(msg(3, 7, "c"))

	got := tl.Messages()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].ID != want {
			t.Errorf("position %d: id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestTimeline_AppendThenRemoveEqualsNever(t *testing.T) {
	tl := New(nil)
	tl.Append(msg(1, 7, "keep"))

	other := New(nil)
	other.Append(msg(1, 7, "keep"))
	other.Append(msg(2, 7, "gone"))
	other.Remove(2)

	if !reflect.DeepEqual(tl.Messages(), other.Messages()) {
		t.Errorf("append+remove is not equivalent to never appending:\n%+v\n%+v", tl.Messages(), other.Messages())
	}
	if other.Contains(2) {
		t.Error("removed id still present")
	}
}

func TestTimeline_RemoveMissIsNoop(t *testing.T) {
	tl := New(nil)
	tl.Append(msg(1, 7, "a"))

	if tl.Remove(99) {
		t.Error("removing an absent id reported a removal")
	}
	if tl.Len() != 1 {
		t.Errorf("timeline changed on miss: %d entries", tl.Len())
	}
	// Removing twice: second is a miss, not an error.
	if !tl.Remove(1) {
		t.Error("first removal missed")
	}
	if tl.Remove(1) {
		t.Error("second removal of same id reported a removal")
	}
}

func TestTimeline_AppendHook(t *testing.T) {
	tl := New(nil)
	var scrolled int
	tl.SetAppendHook(func(models.Message) { scrolled++ })

	tl.Append(msg(1, 7, "a"))
	tl.Append(msg(2, 7, "b"))
	if scrolled != 2 {
		t.Errorf("append hook fired %d times, want 2", scrolled)
	}

	tl.Replace([]models.Message{msg(3, 7, "c")})
	if scrolled != 2 {
		t.Error("replace must not fire the append hook")
	}
}

func TestTimeline_Replace(t *testing.T) {
	tl := New(nil)
	tl.Append(msg(1, 7, "stale"))

	tl.Replace([]models.Message{msg(10, 8, "x"), msg(11, 9, "y")})

	got := tl.Messages()
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
		t.Errorf("unexpected timeline after replace: %+v", got)
	}
	if tl.Contains(1) {
		t.Error("stale entry survived replace")
	}
}

func TestCanDelete(t *testing.T) {
	m := msg(1, 7, "hi")

	tests := []struct {
		name  string
		local models.Identity
		want  bool
	}{
		{"author", models.Identity{UserID: 7, Role: models.RoleUser}, true},
		{"other user", models.Identity{UserID: 8, Role: models.RoleUser}, false},
		{"moderator", models.Identity{UserID: 8, Role: models.RoleModerator}, true},
		{"creator", models.Identity{UserID: 8, Role: models.RoleCreator}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDelete(m, tt.local); got != tt.want {
				t.Errorf("CanDelete() = %v, want %v", got, tt.want)
			}
		})
	}
}
