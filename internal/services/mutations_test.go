package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

func syncedRemote(t *testing.T) (*Directory, *fakeBackend, *fakeBlobs) {
	t.Helper()
	b := newFakeBackend()
	b.merchants = merchantRows(2)
	blobs := newFakeBlobs()
	d, _ := newRemoteDirectory(t, b, blobs)
	d.LoadAll(context.Background())
	return d, b, blobs
}

func TestCreateMerchant_Remote(t *testing.T) {
	d, b, _ := syncedRemote(t)
	before := d.Snapshot().Version

	m, err := d.CreateMerchant(context.Background(), domain.MerchantInput{Name: "  Bakery ", Category: "Food"})
	if err != nil {
		t.Fatalf("CreateMerchant: %v", err)
	}
	if m.ID == "" || m.Name != "Bakery" || m.DetailFetched {
		t.Fatalf("unexpected merchant %+v", m)
	}
	if m.Menu == nil || m.MenuImages == nil {
		t.Fatal("children must be empty lists")
	}
	ms := d.Merchants()
	if len(ms) != 3 || ms[2].ID != m.ID {
		t.Fatalf("merchant not appended: %+v", ms)
	}
	if d.Snapshot().Version <= before {
		t.Fatal("version not bumped")
	}
	if len(b.calls) != 1 || b.calls[0] != "InsertMerchant" {
		t.Fatalf("calls = %v", b.calls)
	}
}

func TestCreateMerchant_RemoteFailureLeavesStateUntouched(t *testing.T) {
	d, b, _ := syncedRemote(t)
	b.writeErr = errBoom
	before := d.Snapshot()

	_, err := d.CreateMerchant(context.Background(), domain.MerchantInput{Name: "Bakery"})
	if !errors.Is(err, ErrRemoteRequestFailed) || !errors.Is(err, errBoom) {
		t.Fatalf("want wrapped remote failure, got %v", err)
	}
	if d.Snapshot() != before {
		t.Fatal("state replaced after failed write")
	}
}

func TestCreateMerchant_Validation(t *testing.T) {
	d, b, _ := syncedRemote(t)
	_, err := d.CreateMerchant(context.Background(), domain.MerchantInput{Name: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if b.callCount() != 0 {
		t.Fatal("validation must happen before I/O")
	}
}

func TestUpdateMerchant_NeverSendsMenu(t *testing.T) {
	d, b, _ := syncedRemote(t)
	menu := []domain.MenuItem{{ID: "x", Name: "Soup", Price: -1}}
	patch := domain.MerchantPatch{
		Name:  strPtr("Renamed"),
		Phone: domain.SetNull[string](),
		Menu:  &menu,
	}

	m, err := d.UpdateMerchant(context.Background(), "m1", patch)
	if err != nil {
		t.Fatalf("UpdateMerchant: %v", err)
	}
	if len(b.updates) != 1 {
		t.Fatalf("want one remote update, got %d", len(b.updates))
	}
	cols := b.updates[0].Columns()
	if _, ok := cols["menu"]; ok {
		t.Fatal("menu forwarded to the merchant row")
	}
	if cols["name"] != "Renamed" {
		t.Fatalf("name not forwarded: %v", cols)
	}
	if v, ok := cols["phone"]; !ok || v != nil {
		t.Fatalf("phone should be cleared: %v", cols)
	}

	if m.Name != "Renamed" || len(m.Menu) != 1 || m.Menu[0].MerchantID != "m1" || m.Menu[0].Price != 0 {
		t.Fatalf("local merge wrong: %+v", m)
	}
	if st := d.Status(); st.LastSyncedAt == nil {
		t.Fatal("last synced not refreshed")
	}
}

func TestUpdateMerchant_UnknownID(t *testing.T) {
	d, b, _ := syncedRemote(t)
	_, err := d.UpdateMerchant(context.Background(), "missing", domain.MerchantPatch{Name: strPtr("x")})
	if !errors.Is(err, ErrMerchantNotFound) || b.callCount() != 0 {
		t.Fatalf("got %v with %d calls", err, b.callCount())
	}
}

func TestRemoveMerchant(t *testing.T) {
	d, b, _ := syncedRemote(t)
	if err := d.RemoveMerchant(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Merchant("m1"); ok {
		t.Fatal("merchant still present")
	}
	if b.calls[0] != "DeleteMerchant" {
		t.Fatalf("calls = %v", b.calls)
	}
}

func TestMenuItems_Remote(t *testing.T) {
	d, b, _ := syncedRemote(t)
	ctx := context.Background()

	it, err := d.AddMenuItem(ctx, "m1", domain.MenuItemInput{Name: "Coffee", Price: -5})
	if err != nil {
		t.Fatalf("AddMenuItem: %v", err)
	}
	if it.Price != 0 || it.MerchantID != "m1" {
		t.Fatalf("unexpected item %+v", it)
	}

	price := 3.5
	upd, err := d.UpdateMenuItem(ctx, "m1", it.ID, domain.MenuItemPatch{Price: &price})
	if err != nil {
		t.Fatalf("UpdateMenuItem: %v", err)
	}
	if upd.Price != 3.5 || upd.Name != "Coffee" {
		t.Fatalf("unexpected update %+v", upd)
	}

	if err := d.RemoveMenuItem(ctx, "m1", it.ID); err != nil {
		t.Fatalf("RemoveMenuItem: %v", err)
	}
	m, _ := d.Merchant("m1")
	if m.HasMenuItem(it.ID) {
		t.Fatal("item still present")
	}
	want := []string{"InsertMenuItem", "UpdateMenuItem", "DeleteMenuItem"}
	if len(b.calls) != len(want) {
		t.Fatalf("calls = %v", b.calls)
	}
	for i := range want {
		if b.calls[i] != want[i] {
			t.Fatalf("calls = %v", b.calls)
		}
	}
}

func TestMenuItems_ForeignItemIsNoop(t *testing.T) {
	d, b, _ := syncedRemote(t)
	ctx := context.Background()
	before := d.Snapshot()

	// m2-i1 belongs to m2.
	if err := d.RemoveMenuItem(ctx, "m1", "m2-i1"); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("want ErrMenuItemNotFound, got %v", err)
	}
	name := "x"
	if _, err := d.UpdateMenuItem(ctx, "m1", "m2-i1", domain.MenuItemPatch{Name: &name}); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("want ErrMenuItemNotFound, got %v", err)
	}
	if b.callCount() != 0 || d.Snapshot() != before {
		t.Fatal("foreign item must not cause I/O or state change")
	}
	m2, _ := d.Merchant("m2")
	if !m2.HasMenuItem("m2-i1") {
		t.Fatal("other merchant's item touched")
	}
}

func TestUpdateMenuItem_RemovedDuringRemoteWrite(t *testing.T) {
	d, b, _ := syncedRemote(t)
	ctx := context.Background()
	b.beforeItemUpdate = func() {
		d.commit(ctx, false, func(next *State) {
			withMerchant(next, "m1", func(m *domain.Merchant) { m.Menu = nil })
		})
	}

	name := "Green tea"
	it, err := d.UpdateMenuItem(ctx, "m1", "m1-i1", domain.MenuItemPatch{Name: &name})
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("want ErrMenuItemNotFound, got %+v %v", it, err)
	}
	if !it.ID.IsZero() {
		t.Fatalf("want zero item, got %+v", it)
	}
}

func TestRemoveMenuImage_AssetFailureTolerated(t *testing.T) {
	d, b, blobs := syncedRemote(t)
	ctx := context.Background()

	img, err := d.AddMenuImage(ctx, "m1", "https://cdn.test/menu-images/abc.jpg")
	if err != nil {
		t.Fatal(err)
	}
	blobs.deleteErr = errBoom

	if err := d.RemoveMenuImage(ctx, "m1", img.ID); err != nil {
		t.Fatalf("asset failure must not block: %v", err)
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != "abc.jpg" {
		t.Fatalf("deleted = %v", blobs.deleted)
	}
	m, _ := d.Merchant("m1")
	if len(m.MenuImages) != 0 {
		t.Fatal("image row not removed")
	}
	if b.calls[len(b.calls)-1] != "DeleteMenuImage" {
		t.Fatalf("calls = %v", b.calls)
	}
}

func TestRemoveMenuImage_RowFailureKeepsImage(t *testing.T) {
	d, b, _ := syncedRemote(t)
	ctx := context.Background()
	img, _ := d.AddMenuImage(ctx, "m1", "https://cdn.test/menu-images/abc.jpg")
	b.writeErr = errBoom

	if err := d.RemoveMenuImage(ctx, "m1", img.ID); !errors.Is(err, ErrRemoteRequestFailed) {
		t.Fatalf("want ErrRemoteRequestFailed, got %v", err)
	}
	m, _ := d.Merchant("m1")
	if len(m.MenuImages) != 1 {
		t.Fatal("image removed despite failure")
	}
}

func TestRemoveLogo(t *testing.T) {
	d, b, blobs := syncedRemote(t)
	ctx := context.Background()
	if _, err := d.UpdateMerchant(ctx, "m1", domain.MerchantPatch{Logo: domain.SetTo("https://cdn.test/menu-images/logo-m1.png")}); err != nil {
		t.Fatal(err)
	}

	m, err := d.RemoveLogo(ctx, "m1")
	if err != nil {
		t.Fatalf("RemoveLogo: %v", err)
	}
	if m.Logo != nil {
		t.Fatalf("logo not cleared: %v", *m.Logo)
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != "logo-m1.png" {
		t.Fatalf("deleted = %v", blobs.deleted)
	}
	last := b.updates[len(b.updates)-1].Columns()
	if v, ok := last["logo"]; !ok || v != nil {
		t.Fatalf("logo not nulled remotely: %v", last)
	}
}

func TestRecommendations_Remote(t *testing.T) {
	d, _, _ := syncedRemote(t)
	ctx := context.Background()

	r, err := d.CreateRecommendation(ctx, domain.RecommendationInput{
		Name:    "<b>Maria</b>",
		Contact: "maria@example.com",
		Message: "Please add <script>alert(1)</script>Fournos",
	})
	if err != nil {
		t.Fatalf("CreateRecommendation: %v", err)
	}
	if r.Name != "Maria" || r.Message != "Please add Fournos" || r.Done {
		t.Fatalf("unexpected recommendation %+v", r)
	}

	toggled, err := d.ToggleRecommendationDone(ctx, r.ID)
	if err != nil || !toggled.Done {
		t.Fatalf("toggle: %+v %v", toggled, err)
	}
	if got, _ := d.Snapshot().Recommendation(r.ID); !got.Done {
		t.Fatal("toggle not applied")
	}

	if err := d.RemoveRecommendation(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Snapshot().Recommendation(r.ID); ok {
		t.Fatal("recommendation still present")
	}
}

func TestToggleRecommendationDone_ConcurrentTogglesBothApply(t *testing.T) {
	d, b, _ := syncedRemote(t)
	ctx := context.Background()
	r, err := d.CreateRecommendation(ctx, domain.RecommendationInput{Name: "Ann", Message: "Add Fournos"})
	if err != nil {
		t.Fatal(err)
	}

	b.doneGate = make(chan struct{})
	b.doneArrived = make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.ToggleRecommendationDone(ctx, r.ID); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}

	select {
	case <-b.doneArrived:
	case <-time.After(2 * time.Second):
		t.Fatal("no toggle reached the backend")
	}
	// Let the other toggle run as far as it can before releasing the first.
	time.Sleep(20 * time.Millisecond)
	close(b.doneGate)
	wg.Wait()

	if got, _ := d.Snapshot().Recommendation(r.ID); got.Done {
		t.Fatal("two toggles should leave done=false")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.doneValues) != 2 || !b.doneValues[0] || b.doneValues[1] {
		t.Fatalf("remote writes = %v; want [true false]", b.doneValues)
	}
}

func TestCreateRecommendation_EmptyMessage(t *testing.T) {
	d, b, _ := syncedRemote(t)
	for _, msg := range []string{"", "   ", "<p></p>", "<script>only</script>"} {
		_, err := d.CreateRecommendation(context.Background(), domain.RecommendationInput{Name: "x", Message: msg})
		if !errors.Is(err, ErrEmptyRecommendation) || !errors.Is(err, ErrValidation) {
			t.Fatalf("%q: want ErrEmptyRecommendation, got %v", msg, err)
		}
	}
	if b.callCount() != 0 {
		t.Fatal("empty recommendation reached the backend")
	}
}

func TestRecommendation_UnknownID(t *testing.T) {
	d, b, _ := syncedRemote(t)
	if _, err := d.ToggleRecommendationDone(context.Background(), "nope"); !errors.Is(err, ErrRecommendationNotFound) {
		t.Fatalf("got %v", err)
	}
	if err := d.RemoveRecommendation(context.Background(), "nope"); !errors.Is(err, ErrRecommendationNotFound) {
		t.Fatalf("got %v", err)
	}
	if b.callCount() != 0 {
		t.Fatal("unknown id reached the backend")
	}
}

func TestMutations_LocalOnly(t *testing.T) {
	d, store := newLocalDirectory(t, nil)
	ctx := context.Background()

	m, err := d.CreateMerchant(ctx, domain.MerchantInput{Name: "Kiosk"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" {
		t.Fatal("local id not assigned")
	}
	a, _ := d.AddMenuItem(ctx, m.ID, domain.MenuItemInput{Name: "Water", Price: 1})
	b, _ := d.AddMenuItem(ctx, m.ID, domain.MenuItemInput{Name: "Juice", Price: 2})
	if a.ID == b.ID || a.ID == m.ID {
		t.Fatalf("ids collide: %s %s %s", m.ID, a.ID, b.ID)
	}
	r, err := d.CreateRecommendation(ctx, domain.RecommendationInput{Message: "add the bakery"})
	if err != nil {
		t.Fatal(err)
	}
	if r.CreatedAt != nil {
		t.Fatal("local recommendations have no created_at")
	}

	persisted := snapshot.Get(ctx, store, snapshot.KeyMerchants, []domain.Merchant{})
	if len(persisted) != 1 || len(persisted[0].Menu) != 2 {
		t.Fatalf("merchants not persisted: %+v", persisted)
	}
	recos := snapshot.Get(ctx, store, snapshot.KeyRecommendations, []domain.Recommendation{})
	if len(recos) != 1 || recos[0].Message != "add the bakery" {
		t.Fatalf("recommendations not persisted: %+v", recos)
	}
	if st := d.Status(); st.LastSyncedAt != nil {
		t.Fatal("local writes must not touch last synced")
	}

	if err := d.RemoveMerchant(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if got := snapshot.Get(ctx, store, snapshot.KeyMerchants, []domain.Merchant{}); len(got) != 0 {
		t.Fatalf("removal not persisted: %+v", got)
	}
}

func TestMutations_LocalModeWithBackend(t *testing.T) {
	b := newFakeBackend()
	b.merchants = merchantRows(1)
	mode := LocalOnly
	d := NewDirectory(DirectoryOptions{
		Backend: b,
		Store:   snapshot.New(snapshot.NewMemory(), zerolog.Nop()),
		Mode:    &mode,
		Clock:   fixedClock(),
	})
	ctx := context.Background()
	d.LoadAll(ctx)

	if _, err := d.AddMenuItem(ctx, "m1", domain.MenuItemInput{Name: "Tea"}); err != nil {
		t.Fatal(err)
	}
	if b.callCount() != 0 {
		t.Fatalf("local mode wrote to the backend: %v", b.calls)
	}
	if d.Mode() != LocalOnly || d.Status().Mode != "local" {
		t.Fatal("mode not honoured")
	}
}

func TestWriteMode_String(t *testing.T) {
	if RemoteFirst.String() != "remote" || LocalOnly.String() != "local" {
		t.Fatal("unexpected mode names")
	}
}
