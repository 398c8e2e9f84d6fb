package rules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/rules"
)

// fakeSource drives the store without touching the filesystem.
type fakeSource struct {
	rules   []model.Rule
	version string
	loadErr error
	changed bool
	loads   int
}

func (f *fakeSource) Load(ctx context.Context) ([]model.Rule, string, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, "", f.loadErr
	}
	return f.rules, f.version, nil
}

func (f *fakeSource) Changed(ctx context.Context, version string) (bool, error) {
	return f.changed, nil
}

func (f *fakeSource) Describe() string { return "fake source" }

func expenseRule(keyword string, priority int, account string) model.Rule {
	return model.Rule{
		Keywords:       []string{keyword},
		Priority:       priority,
		Account:        account,
		CounterAccount: "410",
		OperationType:  model.OperationExpense,
		TaxType:        model.TaxGeneral,
	}
}

func TestStore_MatchPicksHighestPriority(t *testing.T) {
	// Lower priority listed first; ordering must come from priorities,
	// not from row order.
	src := &fakeSource{
		rules: []model.Rule{
			expenseRule("factura", 5, "629"),
			expenseRule("factura", 10, "628"),
		},
		version: "v1",
	}
	store := rules.NewStore(src)
	require.NoError(t, store.Refresh(context.Background(), false))

	matched := store.Snapshot().Match("FACTURA de suministros")
	require.NotNil(t, matched)
	assert.Equal(t, "628", matched.Account)
	assert.Equal(t, 10, matched.Priority)
}

func TestStore_MatchStableOnEqualPriority(t *testing.T) {
	src := &fakeSource{
		rules: []model.Rule{
			expenseRule("suministro", 10, "628"),
			expenseRule("suministro", 10, "629"),
		},
		version: "v1",
	}
	store := rules.NewStore(src)
	require.NoError(t, store.Refresh(context.Background(), false))

	matched := store.Snapshot().Match("recibo de suministro electrico")
	require.NotNil(t, matched)
	assert.Equal(t, "628", matched.Account)
}

func TestStore_KeywordlessRuleNeverMatches(t *testing.T) {
	catchAll := model.Rule{
		Priority:       100,
		Account:        "999",
		CounterAccount: "410",
		OperationType:  model.OperationExpense,
		TaxType:        model.TaxGeneral,
	}
	src := &fakeSource{
		rules:   []model.Rule{catchAll, expenseRule("luz", 1, "628")},
		version: "v1",
	}
	store := rules.NewStore(src)
	require.NoError(t, store.Refresh(context.Background(), false))

	matched := store.Snapshot().Match("recibo de luz de enero")
	require.NotNil(t, matched)
	assert.Equal(t, "628", matched.Account)

	assert.Nil(t, store.Snapshot().Match("texto sin coincidencias"))
}

func TestStore_MatchEmptyText(t *testing.T) {
	src := &fakeSource{rules: []model.Rule{expenseRule("luz", 1, "628")}, version: "v1"}
	store := rules.NewStore(src)
	require.NoError(t, store.Refresh(context.Background(), false))

	assert.Nil(t, store.Snapshot().Match(""))
	assert.Nil(t, store.Snapshot().Match("   \n\t"))
}

func TestStore_SnapshotNilBeforeFirstRefresh(t *testing.T) {
	store := rules.NewStore(&fakeSource{})
	assert.Nil(t, store.Snapshot())
}

func TestStore_KeepsPreviousSnapshotOnLoadFailure(t *testing.T) {
	src := &fakeSource{rules: []model.Rule{expenseRule("luz", 1, "628")}, version: "v1"}
	store := rules.NewStore(src)
	require.NoError(t, store.Refresh(context.Background(), false))

	before := store.Snapshot()
	require.Equal(t, 1, before.Len())

	src.loadErr = errors.New("sheet unavailable")
	src.changed = true
	err := store.Refresh(context.Background(), false)
	require.Error(t, err)

	after := store.Snapshot()
	assert.Same(t, before, after)
	assert.NotNil(t, after.Match("recibo de luz"))
}

func TestStore_SkipsReloadWhenUnchanged(t *testing.T) {
	src := &fakeSource{rules: []model.Rule{expenseRule("luz", 1, "628")}, version: "v1"}
	store := rules.NewStore(src)
	ctx := context.Background()

	require.NoError(t, store.Refresh(ctx, false))
	require.Equal(t, 1, src.loads)
	first := store.Snapshot()

	require.NoError(t, store.Refresh(ctx, false))
	assert.Equal(t, 1, src.loads)
	assert.Same(t, first, store.Snapshot())

	src.changed = true
	src.version = "v2"
	require.NoError(t, store.Refresh(ctx, false))
	assert.Equal(t, 2, src.loads)
	assert.NotSame(t, first, store.Snapshot())
	assert.Equal(t, "v2", store.Snapshot().Version())
}

func TestStore_ForceReloadBypassesChangeCheck(t *testing.T) {
	src := &fakeSource{rules: []model.Rule{expenseRule("luz", 1, "628")}, version: "v1"}
	store := rules.NewStore(src)
	ctx := context.Background()

	require.NoError(t, store.Refresh(ctx, false))
	require.NoError(t, store.Refresh(ctx, true))
	assert.Equal(t, 2, src.loads)
}

func TestStore_WatchRequiresFileBackedSource(t *testing.T) {
	store := rules.NewStore(&fakeSource{})

	err := store.Watch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not file backed")
}

func TestStore_WatchStopsOnContextCancel(t *testing.T) {
	path := writeRules(t, semicolonRules)
	store := rules.NewStore(rules.NewCSVSource(path))
	require.NoError(t, store.Refresh(context.Background(), false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
