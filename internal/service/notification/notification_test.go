package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

type memStore struct {
	list []*repo.Notification
}

func (m *memStore) Create(_ context.Context, n *repo.Notification) error {
	n.ID = uuid.New()
	m.list = append(m.list, n)
	return nil
}

func (m *memStore) List(_ context.Context, userID uuid.UUID, unreadOnly bool, _ repo.Page) ([]*repo.Notification, int, error) {
	var out []*repo.Notification
	for _, n := range m.list {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *memStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	_, n, err := m.List(ctx, userID, true, repo.Page{})
	return n, err
}

func (m *memStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for _, n := range m.list {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	var c int64
	for _, n := range m.list {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			c++
		}
	}
	return c, nil
}

func TestNotifications(t *testing.T) {
	store := &memStore{}
	svc := New(store)
	ctx := context.Background()
	user, other := uuid.New(), uuid.New()

	if _, err := svc.Create(ctx, CreateRequest{UserID: user, Title: "  "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title: %v", err)
	}
	first, err := svc.Create(ctx, CreateRequest{UserID: user, Type: TypeQueueConfirmed, Title: "New patient", Data: map[string]any{"queue_number": 3}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var data map[string]any
	if err := json.Unmarshal(first.Data, &data); err != nil || data["queue_number"] != float64(3) {
		t.Fatalf("data = %s, %v", first.Data, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, CreateRequest{UserID: user, Title: "n"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.MarkRead(ctx, other, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, user, first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	res, err := svc.List(ctx, user, ListRequest{UnreadOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 || res.Unread != 2 {
		t.Fatalf("total=%d unread=%d", res.Total, res.Unread)
	}

	n, err := svc.MarkAllRead(ctx, user)
	if err != nil || n != 2 {
		t.Fatalf("MarkAllRead = %d, %v", n, err)
	}
}
