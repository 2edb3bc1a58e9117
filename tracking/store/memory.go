// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/jobclock/tracking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements tracking.TxStore.
//
// Transactions stage their writes in a private overlay and only take the
// store's write lock at commit, so transactions on unrelated rows do not block
// each other. Isolation beyond read-committed is the coordinator's job (keyed
// locks); Memory does not detect write-write conflicts.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[tracking.JobID]tracking.Job
	products  map[tracking.ProductID]tracking.Product
	inventory map[inventoryKey]tracking.Inventory
	usage     map[usageKey]tracking.Usage
	logs      map[tracking.JobID][]tracking.LogEntry
	seq       int64

	faultMu sync.Mutex
	fault   FaultFunc
}

// FaultFunc is consulted before every write with the operation name
// ("save_job", "save_usage", "save_inventory", "append_log", "save_product",
// "commit"). A non-nil return fails that write.
type FaultFunc func(op string) error

type inventoryKey struct {
	Worker  tracking.WorkerID
	Product tracking.ProductID
}

type usageKey struct {
	Job     tracking.JobID
	Product tracking.ProductID
}

func NewMemory() *Memory {
	return &Memory{
		jobs:      make(map[tracking.JobID]tracking.Job),
		products:  make(map[tracking.ProductID]tracking.Product),
		inventory: make(map[inventoryKey]tracking.Inventory),
		usage:     make(map[usageKey]tracking.Usage),
		logs:      make(map[tracking.JobID][]tracking.LogEntry),
	}
}

// InjectFault installs f; pass nil to clear it.
func (m *Memory) InjectFault(f FaultFunc) {
	m.faultMu.Lock()
	m.fault = f
	m.faultMu.Unlock()
}

func (m *Memory) check(op string) error {
	m.faultMu.Lock()
	f := m.fault
	m.faultMu.Unlock()
	if f == nil {
		return nil
	}
	return f(op)
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) GetJob(_ context.Context, id tracking.JobID) (*tracking.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, tracking.ErrJobNotFound
	}
	c := j.Clone()
	return &c, nil
}

func (m *Memory) GetProduct(_ context.Context, id tracking.ProductID) (*tracking.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) GetInventory(_ context.Context, worker tracking.WorkerID, product tracking.ProductID) (*tracking.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.inventory[inventoryKey{worker, product}]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *Memory) ListInventory(_ context.Context, worker tracking.WorkerID) ([]tracking.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []tracking.Inventory
	for k, inv := range m.inventory {
		if k.Worker == worker {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *Memory) GetUsage(_ context.Context, job tracking.JobID, product tracking.ProductID) (*tracking.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usage[usageKey{job, product}]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListUsage(_ context.Context, job tracking.JobID) ([]tracking.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []tracking.Usage
	for k, u := range m.usage {
		if k.Job == job {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *Memory) Logs(_ context.Context, job tracking.JobID) ([]tracking.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]tracking.LogEntry, len(m.logs[job]))
	copy(result, m.logs[job])
	return result, nil
}

// =============================================================================
// WRITES (outside a transaction)
// =============================================================================

func (m *Memory) SaveJob(_ context.Context, job tracking.Job) error {
	if err := m.check("save_job"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *Memory) SaveProduct(_ context.Context, p tracking.Product) error {
	if err := m.check("save_product"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) SaveInventory(_ context.Context, inv tracking.Inventory) error {
	if err := m.check("save_inventory"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[inventoryKey{inv.WorkerID, inv.ProductID}] = inv
	return nil
}

func (m *Memory) SaveUsage(_ context.Context, u tracking.Usage) error {
	if err := m.check("save_usage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[usageKey{u.JobID, u.ProductID}] = u
	return nil
}

// AppendLog adds a log entry. Append-only.
func (m *Memory) AppendLog(_ context.Context, e tracking.LogEntry) error {
	if err := m.check("append_log"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLogLocked(e)
	return nil
}

func (m *Memory) appendLogLocked(e tracking.LogEntry) {
	m.seq++
	e.Seq = m.seq
	m.logs[e.JobID] = append(m.logs[e.JobID], e)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a staged view and commits the overlay only if
// fn succeeds. On error nothing fn wrote becomes visible.
func (m *Memory) WithTx(ctx context.Context, fn func(tracking.Store) error) error {
	view := newTxView(m)
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.check("commit"); err != nil {
		return err
	}
	m.commit(view)
	return nil
}

func (m *Memory) commit(v *txView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range v.jobs {
		m.jobs[id] = j
	}
	for id, p := range v.products {
		m.products[id] = p
	}
	for k, inv := range v.inventory {
		m.inventory[k] = inv
	}
	for k, u := range v.usage {
		m.usage[k] = u
	}
	for _, e := range v.logs {
		m.appendLogLocked(e)
	}
}

// txView reads through its overlay to the parent and stages all writes.
// It is used by one goroutine at a time.
type txView struct {
	parent *Memory

	jobs      map[tracking.JobID]tracking.Job
	products  map[tracking.ProductID]tracking.Product
	inventory map[inventoryKey]tracking.Inventory
	usage     map[usageKey]tracking.Usage
	logs      []tracking.LogEntry
}

func newTxView(parent *Memory) *txView {
	return &txView{
		parent:    parent,
		jobs:      make(map[tracking.JobID]tracking.Job),
		products:  make(map[tracking.ProductID]tracking.Product),
		inventory: make(map[inventoryKey]tracking.Inventory),
		usage:     make(map[usageKey]tracking.Usage),
	}
}

func (v *txView) GetJob(ctx context.Context, id tracking.JobID) (*tracking.Job, error) {
	if j, ok := v.jobs[id]; ok {
		c := j.Clone()
		return &c, nil
	}
	return v.parent.GetJob(ctx, id)
}

func (v *txView) SaveJob(_ context.Context, job tracking.Job) error {
	if err := v.parent.check("save_job"); err != nil {
		return err
	}
	v.jobs[job.ID] = job.Clone()
	return nil
}

func (v *txView) GetProduct(ctx context.Context, id tracking.ProductID) (*tracking.Product, error) {
	if p, ok := v.products[id]; ok {
		return &p, nil
	}
	return v.parent.GetProduct(ctx, id)
}

func (v *txView) SaveProduct(_ context.Context, p tracking.Product) error {
	if err := v.parent.check("save_product"); err != nil {
		return err
	}
	v.products[p.ID] = p
	return nil
}

func (v *txView) GetInventory(ctx context.Context, worker tracking.WorkerID, product tracking.ProductID) (*tracking.Inventory, error) {
	if inv, ok := v.inventory[inventoryKey{worker, product}]; ok {
		return &inv, nil
	}
	return v.parent.GetInventory(ctx, worker, product)
}

func (v *txView) SaveInventory(_ context.Context, inv tracking.Inventory) error {
	if err := v.parent.check("save_inventory"); err != nil {
		return err
	}
	v.inventory[inventoryKey{inv.WorkerID, inv.ProductID}] = inv
	return nil
}

func (v *txView) ListInventory(ctx context.Context, worker tracking.WorkerID) ([]tracking.Inventory, error) {
	base, err := v.parent.ListInventory(ctx, worker)
	if err != nil {
		return nil, err
	}
	merged := make(map[tracking.ProductID]tracking.Inventory, len(base))
	for _, inv := range base {
		merged[inv.ProductID] = inv
	}
	for k, inv := range v.inventory {
		if k.Worker == worker {
			merged[k.Product] = inv
		}
	}
	out := make([]tracking.Inventory, 0, len(merged))
	for _, inv := range merged {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (v *txView) GetUsage(ctx context.Context, job tracking.JobID, product tracking.ProductID) (*tracking.Usage, error) {
	if u, ok := v.usage[usageKey{job, product}]; ok {
		return &u, nil
	}
	return v.parent.GetUsage(ctx, job, product)
}

func (v *txView) SaveUsage(_ context.Context, u tracking.Usage) error {
	if err := v.parent.check("save_usage"); err != nil {
		return err
	}
	v.usage[usageKey{u.JobID, u.ProductID}] = u
	return nil
}

func (v *txView) ListUsage(ctx context.Context, job tracking.JobID) ([]tracking.Usage, error) {
	base, err := v.parent.ListUsage(ctx, job)
	if err != nil {
		return nil, err
	}
	merged := make(map[tracking.ProductID]tracking.Usage, len(base))
	for _, u := range base {
		merged[u.ProductID] = u
	}
	for k, u := range v.usage {
		if k.Job == job {
			merged[k.Product] = u
		}
	}
	out := make([]tracking.Usage, 0, len(merged))
	for _, u := range merged {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (v *txView) AppendLog(_ context.Context, e tracking.LogEntry) error {
	if err := v.parent.check("append_log"); err != nil {
		return err
	}
	v.logs = append(v.logs, e)
	return nil
}

func (v *txView) Logs(ctx context.Context, job tracking.JobID) ([]tracking.LogEntry, error) {
	out, err := v.parent.Logs(ctx, job)
	if err != nil {
		return nil, err
	}
	for _, e := range v.logs {
		if e.JobID == job {
			out = append(out, e)
		}
	}
	return out, nil
}
