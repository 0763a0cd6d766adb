// Package memory is an in-process remote.Gateway used by tests and by the
// CLI's offline demo mode. It keeps records per resource, assigns ids and
// answers statistics by aggregating its own transactions.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"fincache/internal/core"
	"fincache/internal/remote"
)

type Store struct {
	mu            sync.Mutex
	nextID        int64
	transactions  []core.Transaction
	budgets       []core.Budget
	categories    []core.Category
	notifications []core.Notification

	// failure injection
	transportErr error
	serverCode   int
	serverMsg    string
	dataWrapped  bool

	calls map[string]int
}

var _ remote.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1, calls: map[string]int{}}
}

// NewSeeded returns a store with a small demo data set for userID.
func NewSeeded(userID int64) *Store {
	s := New()
	food := s.SeedCategory(core.Category{UserID: userID, Name: "Food", Type: core.Expense, SortOrder: 1})
	home := s.SeedCategory(core.Category{UserID: userID, Name: "Home", Type: core.Expense, SortOrder: 2})
	salary := s.SeedCategory(core.Category{UserID: userID, Name: "Salary", Type: core.Income, SortOrder: 3})

	s.SeedTransaction(core.Transaction{UserID: userID, Type: core.Income, Amount: decimal.NewFromInt(2500),
		CategoryID: salary.ID, CategoryName: salary.Name, Description: "Salary", Date: core.NewDate(2025, 1, 1)})
	s.SeedTransaction(core.Transaction{UserID: userID, Type: core.Expense, Amount: decimal.RequireFromString("54.20"),
		CategoryID: food.ID, CategoryName: food.Name, Description: "Groceries", Date: core.NewDate(2025, 1, 3)})
	s.SeedTransaction(core.Transaction{UserID: userID, Type: core.Expense, Amount: decimal.NewFromInt(900),
		CategoryID: home.ID, CategoryName: home.Name, Description: "Rent", Date: core.NewDate(2025, 1, 5)})

	s.SeedBudget(core.Budget{UserID: userID, CategoryID: food.ID, CategoryName: food.Name,
		Amount: decimal.NewFromInt(400), Period: core.Monthly, StartDate: core.NewDate(2025, 1, 1)})
	s.SeedNotification(core.Notification{UserID: userID, Title: "Welcome", Content: "Your account is ready",
		Type: "system", CreatedAt: core.NewDate(2025, 1, 1)})
	return s
}

// FailTransport makes every call fail with err until cleared with nil.
func (s *Store) FailTransport(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportErr = err
}

// FailServer makes every call answer with a non-success envelope. Code 0 clears it.
func (s *Store) FailServer(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverCode = code
	s.serverMsg = msg
}

// WrapInData switches list responses from rows to data, the way some endpoints answer.
func (s *Store) WrapInData(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataWrapped = on
}

// Calls returns how many times method was invoked on res, e.g. Calls("list", remote.Budgets).
func (s *Store) Calls(method string, res remote.Resource) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+":"+string(res)]
}

func (s *Store) SeedTransaction(t core.Transaction) core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.assignID(t.ID)
	s.transactions = append(s.transactions, t)
	return t
}

func (s *Store) SeedBudget(b core.Budget) core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.assignID(b.ID)
	s.budgets = append(s.budgets, b)
	return b
}

func (s *Store) SeedCategory(c core.Category) core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.assignID(c.ID)
	s.categories = append(s.categories, c)
	return c
}

func (s *Store) SeedNotification(n core.Notification) core.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.assignID(n.ID)
	s.notifications = append(s.notifications, n)
	return n
}

func (s *Store) assignID(id int64) int64 {
	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return id
}

// begin records the call and returns the injected failure, if any.
func (s *Store) begin(method string, res remote.Resource) (*remote.Envelope, error) {
	s.calls[method+":"+string(res)]++
	if s.transportErr != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrTransport, s.transportErr)
	}
	if s.serverCode != 0 {
		return remote.Fail(s.serverCode, s.serverMsg), nil
	}
	return nil, nil
}

func (s *Store) List(ctx context.Context, res remote.Resource, params remote.Params) (*remote.Envelope, error) {
	return s.Query(ctx, res, remote.ActionList, params)
}

func (s *Store) Query(_ context.Context, res remote.Resource, action string, params remote.Params) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin(action, res); env != nil || err != nil {
		return env, err
	}

	userID, _ := strconv.ParseInt(params["userId"], 10, 64)
	if res == remote.Statistics {
		return s.statistics(core.StatKind(action), userID, params)
	}
	if action != remote.ActionList {
		return remote.Fail(404, fmt.Sprintf("unknown action %s/%s", res, action)), nil
	}

	var rows any
	switch res {
	case remote.Transactions:
		rows = ownedBy(s.transactions, userID, func(t core.Transaction) int64 { return t.UserID })
	case remote.Budgets:
		rows = ownedBy(s.budgets, userID, func(b core.Budget) int64 { return b.UserID })
	case remote.Categories:
		rows = ownedBy(s.categories, userID, func(c core.Category) int64 { return c.UserID })
	case remote.Notifications:
		rows = ownedBy(s.notifications, userID, func(n core.Notification) int64 { return n.UserID })
	default:
		return remote.Fail(404, "unknown resource "+string(res)), nil
	}

	if s.dataWrapped {
		return remote.OK(rows)
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrTransport, err)
	}
	var n []json.RawMessage
	_ = json.Unmarshal(raw, &n)
	return &remote.Envelope{Code: remote.CodeOK, Msg: "success", Rows: raw, Total: int64(len(n))}, nil
}

func (s *Store) Get(_ context.Context, res remote.Resource, id int64) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin("get", res); env != nil || err != nil {
		return env, err
	}

	var (
		found any
		ok    bool
	)
	switch res {
	case remote.Transactions:
		found, ok = byID(s.transactions, id)
	case remote.Budgets:
		found, ok = byID(s.budgets, id)
	case remote.Categories:
		found, ok = byID(s.categories, id)
	case remote.Notifications:
		found, ok = byID(s.notifications, id)
	}
	if !ok {
		return remote.Fail(404, fmt.Sprintf("%s %d not found", res, id)), nil
	}
	return remote.OK(found)
}

func (s *Store) Add(_ context.Context, res remote.Resource, body any) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin("add", res); env != nil || err != nil {
		return env, err
	}

	switch res {
	case remote.Transactions:
		return insert(s, &s.transactions, body, func(t *core.Transaction, id int64) { t.ID = id })
	case remote.Budgets:
		return insert(s, &s.budgets, body, func(b *core.Budget, id int64) { b.ID = id })
	case remote.Categories:
		return insert(s, &s.categories, body, func(c *core.Category, id int64) { c.ID = id })
	case remote.Notifications:
		return insert(s, &s.notifications, body, func(n *core.Notification, id int64) { n.ID = id })
	default:
		return remote.Fail(404, "unknown resource "+string(res)), nil
	}
}

func (s *Store) Update(_ context.Context, res remote.Resource, body any) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin("update", res); env != nil || err != nil {
		return env, err
	}

	switch res {
	case remote.Transactions:
		return replace(s.transactions, body)
	case remote.Budgets:
		return replace(s.budgets, body)
	case remote.Categories:
		return replace(s.categories, body)
	case remote.Notifications:
		return replace(s.notifications, body)
	default:
		return remote.Fail(404, "unknown resource "+string(res)), nil
	}
}

func (s *Store) Delete(_ context.Context, res remote.Resource, ids ...int64) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin("delete", res); env != nil || err != nil {
		return env, err
	}

	var removed int
	switch res {
	case remote.Transactions:
		s.transactions, removed = without(s.transactions, ids)
	case remote.Budgets:
		s.budgets, removed = without(s.budgets, ids)
	case remote.Categories:
		s.categories, removed = without(s.categories, ids)
	case remote.Notifications:
		s.notifications, removed = without(s.notifications, ids)
	default:
		return remote.Fail(404, "unknown resource "+string(res)), nil
	}
	return remote.OK(removed)
}

func (s *Store) Invoke(_ context.Context, res remote.Resource, action string, body any) (*remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, err := s.begin(action, res); env != nil || err != nil {
		return env, err
	}
	if res != remote.Notifications {
		return remote.Fail(404, fmt.Sprintf("unknown action %s/%s", res, action)), nil
	}

	var args struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"userId"`
	}
	if err := reencode(body, &args); err != nil {
		return remote.Fail(400, err.Error()), nil
	}

	switch action {
	case remote.ActionRead:
		for i := range s.notifications {
			if s.notifications[i].ID == args.ID {
				s.notifications[i].IsRead = true
				return remote.OK(args.ID)
			}
		}
		return remote.Fail(404, fmt.Sprintf("notification %d not found", args.ID)), nil
	case remote.ActionReadAll:
		n := 0
		for i := range s.notifications {
			if s.notifications[i].UserID == args.UserID && !s.notifications[i].IsRead {
				s.notifications[i].IsRead = true
				n++
			}
		}
		return remote.OK(n)
	case remote.ActionClear:
		kept := s.notifications[:0]
		n := 0
		for _, item := range s.notifications {
			if item.UserID == args.UserID {
				n++
				continue
			}
			kept = append(kept, item)
		}
		s.notifications = kept
		return remote.OK(n)
	default:
		return remote.Fail(404, fmt.Sprintf("unknown action %s/%s", res, action)), nil
	}
}

func ownedBy[T any](items []T, userID int64, owner func(T) int64) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if userID == 0 || owner(it) == userID {
			out = append(out, it)
		}
	}
	return out
}

func byID[T core.Entity](items []T, id int64) (T, bool) {
	for _, it := range items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func insert[T core.Entity](s *Store, items *[]T, body any, setID func(*T, int64)) (*remote.Envelope, error) {
	var item T
	if err := reencode(body, &item); err != nil {
		return remote.Fail(400, err.Error()), nil
	}
	setID(&item, s.assignID(item.EntityID()))
	*items = append(*items, item)
	return remote.OK(item)
}

func replace[T core.Entity](items []T, body any) (*remote.Envelope, error) {
	var item T
	if err := reencode(body, &item); err != nil {
		return remote.Fail(400, err.Error()), nil
	}
	for i := range items {
		if items[i].EntityID() == item.EntityID() {
			items[i] = item
			return remote.OK(item)
		}
	}
	return remote.Fail(404, fmt.Sprintf("record %d not found", item.EntityID())), nil
}

func without[T core.Entity](items []T, ids []int64) ([]T, int) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := items[:0]
	for _, it := range items {
		if _, ok := drop[it.EntityID()]; ok {
			continue
		}
		kept = append(kept, it)
	}
	return kept, len(items) - len(kept)
}

// reencode copies body into out through JSON, the way a server would see it.
func reencode(body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (s *Store) statistics(kind core.StatKind, userID int64, params remote.Params) (*remote.Envelope, error) {
	from, _ := core.ParseDate(params["from"])
	to, _ := core.ParseDate(params["to"])
	flow := core.FlowType(params["type"])

	var txs []core.Transaction
	for _, t := range s.transactions {
		if userID != 0 && t.UserID != userID {
			continue
		}
		if !t.Date.InRange(from, to) {
			continue
		}
		txs = append(txs, t)
	}

	switch kind {
	case core.StatOverview:
		income := core.Sum(txs, core.Income)
		expense := core.Sum(txs, core.Expense)
		return remote.OK(core.StatisticResult{
			"totalIncome":      income.StringFixed(2),
			"totalExpense":     expense.StringFixed(2),
			"balance":          income.Sub(expense).StringFixed(2),
			"transactionCount": len(txs),
		})
	case core.StatCategory:
		if flow == "" {
			flow = core.Expense
		}
		return remote.OK(core.StatisticResult{
			"type":  string(flow),
			"items": breakdown(txs, flow),
			"total": core.Sum(txs, flow).StringFixed(2),
		})
	case core.StatTrend:
		return remote.OK(core.StatisticResult{
			"period": params["period"],
			"series": trend(txs, core.Period(params["period"])),
		})
	default:
		return remote.Fail(404, "unknown statistic "+string(kind)), nil
	}
}

func breakdown(txs []core.Transaction, flow core.FlowType) []core.CategoryAmount {
	byCat := map[int64]*core.CategoryAmount{}
	for _, t := range txs {
		if t.Type != flow {
			continue
		}
		ca, ok := byCat[t.CategoryID]
		if !ok {
			ca = &core.CategoryAmount{CategoryID: t.CategoryID, Name: t.CategoryName, Amount: decimal.Zero}
			byCat[t.CategoryID] = ca
		}
		ca.Amount = ca.Amount.Add(t.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(byCat))
	for _, ca := range byCat {
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

type trendPoint struct {
	Label   string `json:"label"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
}

func trend(txs []core.Transaction, period core.Period) []trendPoint {
	type acc struct{ income, expense decimal.Decimal }
	buckets := map[string]*acc{}
	for _, t := range txs {
		label := bucketLabel(t.Date, period)
		b, ok := buckets[label]
		if !ok {
			b = &acc{income: decimal.Zero, expense: decimal.Zero}
			buckets[label] = b
		}
		if t.Type == core.Income {
			b.income = b.income.Add(t.Amount)
		} else {
			b.expense = b.expense.Add(t.Amount)
		}
	}
	labels := make([]string, 0, len(buckets))
	for l := range buckets {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]trendPoint, 0, len(labels))
	for _, l := range labels {
		out = append(out, trendPoint{Label: l, Income: buckets[l].income.StringFixed(2), Expense: buckets[l].expense.StringFixed(2)})
	}
	return out
}

func bucketLabel(d core.Date, period core.Period) string {
	switch period {
	case core.Yearly:
		return d.Format("2006")
	case core.Weekly:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return d.Format("2006-01")
	}
}
