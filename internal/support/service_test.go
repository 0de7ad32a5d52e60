package support

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/backup"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/notify"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

type countingCue struct {
	mu    sync.Mutex
	plays int
}

func (c *countingCue) Play(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays++
	return nil
}

type capturingNotifier struct {
	titles []string
}

func (c *capturingNotifier) Show(_ context.Context, title, body string) error {
	c.titles = append(c.titles, title)
	return nil
}

func newTestService(t *testing.T, perm notify.PermissionState) (*Service, *countingCue, *capturingNotifier) {
	t.Helper()
	cue, n := &countingCue{}, &capturingNotifier{}
	svc := New(storage.NewMemory(), Options{
		Cue:               cue,
		Notifier:          n,
		InitialPermission: perm,
		Prompter:          notify.AutoPrompter{Grant: true},
	}, nil)
	return svc, cue, n
}

func TestSendMessageDispatchesOnce(t *testing.T) {
	svc, cue, n := newTestService(t, notify.PermissionGranted)
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, "BK-100", "MV Aurora", "Ana", data.CategoryTechnical)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, chat.ID, data.RoleCustomer, "Ana", "engine noise", data.CategoryTechnical); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, chat.ID, data.RoleTechnical, "Joao", "scheduling inspection", data.CategoryTechnical); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if cue.plays != 2 {
		t.Fatalf("expected a cue per send, got %d", cue.plays)
	}
	if len(n.titles) != 1 || n.titles[0] != "Technical support" {
		t.Fatalf("expected one staff notification, got %v", n.titles)
	}
}

func TestSendMessageNotFoundSkipsSideEffects(t *testing.T) {
	svc, cue, _ := newTestService(t, notify.PermissionGranted)
	_, err := svc.SendMessage(context.Background(), "missing", data.RoleCustomer, "Ana", "hi", "")
	if !errors.Is(err, data.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if cue.plays != 0 {
		t.Fatal("a failed send must not play the cue")
	}
}

func TestSubscribeSeesSend(t *testing.T) {
	svc, _, _ := newTestService(t, notify.PermissionDefault)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, "BK-1", "", "", data.CategoryBooking)

	var got [][]data.Message
	unsubscribe := svc.Subscribe(ctx, chat.ID, func(msgs []data.Message) { got = append(got, msgs) })
	defer unsubscribe()

	if _, err := svc.SendMessage(ctx, chat.ID, data.RoleCustomer, "Ana", "hello", ""); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 0 || len(got[1]) != 1 {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestPermissionNegotiation(t *testing.T) {
	svc, _, _ := newTestService(t, notify.PermissionDefault)
	ctx := context.Background()

	if svc.NotificationPermission(ctx) != notify.PermissionDefault {
		t.Fatal("expected undecided permission")
	}
	ok, err := svc.RequestNotificationPermission(ctx)
	if err != nil || !ok {
		t.Fatalf("Request = %v, %v", ok, err)
	}
	if svc.NotificationPermission(ctx) != notify.PermissionGranted {
		t.Fatal("expected granted permission")
	}
	if err := svc.ResetNotificationPermission(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if svc.NotificationPermission(ctx) != notify.PermissionDefault {
		t.Fatal("expected reset permission")
	}
}

func TestExportImportClear(t *testing.T) {
	svc, _, _ := newTestService(t, notify.PermissionDefault)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, "BK-1", "MV Aurora", "Ana", data.CategoryFinancial)
	_, _ = svc.SendMessage(ctx, chat.ID, data.RoleCustomer, "Ana", "invoice", "")

	raw, err := svc.Export(ctx, backup.FormatYAML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n := len(svc.ListChats(ctx, data.CategoryAll, data.RoleAdmin)); n != 0 {
		t.Fatalf("expected empty store after Clear, got %d", n)
	}

	n, err := svc.Import(ctx, raw, backup.FormatYAML)
	if err != nil || n != 1 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	got, ok := svc.GetChat(ctx, chat.ID, data.RoleFinancial)
	if !ok || got.UnreadCount != 1 || got.LastMessage != "invoice" {
		t.Fatalf("unexpected imported chat %+v", got)
	}

	if _, err := svc.Import(ctx, []byte(`{"version":1,"chats":[{"id":""}]}`), backup.FormatJSON); !errors.Is(err, backup.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if n := len(svc.ListChats(ctx, data.CategoryAll, data.RoleAdmin)); n != 1 {
		t.Fatal("a rejected import must not touch the store")
	}
}

func TestServiceStatusAndLookup(t *testing.T) {
	svc, _, _ := newTestService(t, notify.PermissionDefault)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, "BK-2", "", "", data.CategoryTechnical)

	if err := svc.CloseChat(ctx, chat.ID); err != nil {
		t.Fatalf("CloseChat failed: %v", err)
	}
	got, ok := svc.GetChatByConversationKey(ctx, "BK-2", data.RoleCustomer)
	if !ok || got.Status != data.StatusClosed {
		t.Fatalf("expected closed chat, got %+v", got)
	}
	if err := svc.ReopenChat(ctx, chat.ID); err != nil {
		t.Fatalf("ReopenChat failed: %v", err)
	}
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if svc.UnreadTotal(ctx, data.CategoryTechnical, data.RoleTechnical) != 0 {
		t.Fatal("expected no unread messages")
	}
}
