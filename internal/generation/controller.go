// Package generation implements the section generation state machine: when
// a new completion request may be issued, how accepted history feeds the
// next request, and how auto-advance decides to continue or halt.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kwren/distill/internal/assemble"
	"github.com/kwren/distill/internal/logbook"
	"github.com/kwren/distill/internal/provider"
	"github.com/kwren/distill/internal/store"
)

var (
	// ErrBusy means a completion request is already in flight.
	ErrBusy = errors.New("generation: request already in flight")
	// ErrNoDocument means the controller has no document to work on.
	ErrNoDocument = errors.New("generation: no document selected")
	// ErrNoCredential means the selected provider has no credential.
	ErrNoCredential = errors.New("generation: no credential configured")
	// ErrStopped means a pending stop request pre-empted the cycle.
	ErrStopped = errors.New("generation: stop requested")
)

// defaultSettleDelay gives storage writes time to land before a continuation
// evaluation re-reads them. Best effort, not a durability guarantee.
const defaultSettleDelay = 600 * time.Millisecond

// Controller drives generation for one document. It is built for a single
// cooperative event loop: every method except Execute must be called from
// that loop, and the busy flag is its only mutual exclusion. Execute alone
// may run on another goroutine; it touches no controller state.
type Controller struct {
	store       *store.Store
	docID       string
	credentials func(providerID string) string
	oracles     func(providerID, credential string) (provider.Oracle, error)
	log         *logbook.Logbook
	settle      time.Duration

	busy          bool
	stopRequested bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithCredentials injects the credential lookup for providers.
func WithCredentials(lookup func(providerID string) string) Option {
	return func(c *Controller) {
		if lookup != nil {
			c.credentials = lookup
		}
	}
}

// WithOracleFactory overrides how provider clients are constructed
// (primarily for tests).
func WithOracleFactory(factory func(providerID, credential string) (provider.Oracle, error)) Option {
	return func(c *Controller) {
		if factory != nil {
			c.oracles = factory
		}
	}
}

// WithLogbook attaches a run logbook.
func WithLogbook(log *logbook.Logbook) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithSettleDelay overrides the storage settling delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.settle = d
		}
	}
}

// New binds a controller to one document in the store.
func New(st *store.Store, docID string, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("generation: store is required")
	}
	if strings.TrimSpace(docID) == "" {
		return nil, ErrNoDocument
	}
	c := &Controller{
		store:       st,
		docID:       docID,
		credentials: func(string) string { return "" },
		oracles: func(providerID, credential string) (provider.Oracle, error) {
			return provider.New(providerID, credential)
		},
		settle: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Cycle is one generation request, assembled at cycle entry. The run
// configuration is captured here so a configuration edit mid-request cannot
// change what the request meant.
type Cycle struct {
	Request provider.Request

	oracle provider.Oracle
	run    store.RunConfig
	first  bool
}

// Outcome reports what Finish did with a completed cycle.
type Outcome struct {
	Section store.Section
	// ScheduleContinuation is set when an auto-advance evaluation should
	// run after the settling delay.
	ScheduleContinuation bool
}

// Decision is the result of a continuation evaluation.
type Decision struct {
	// Continue means another cycle should begin now.
	Continue bool
	// Halted means this evaluation switched auto-advance off.
	Halted bool
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool { return c.busy }

// StopRequested reports whether a stop is pending.
func (c *Controller) StopRequested() bool { return c.stopRequested }

// SettleDelay is how long callers should wait before running a scheduled
// continuation evaluation.
func (c *Controller) SettleDelay() time.Duration { return c.settle }

// DocumentID returns the document this controller drives.
func (c *Controller) DocumentID() string { return c.docID }

// Begin starts one generation cycle: it runs the pre-flight checks, builds
// the request from durable state, and sets the busy flag. Every successful
// Begin must be paired with exactly one Finish.
func (c *Controller) Begin() (*Cycle, error) {
	if c.stopRequested {
		c.stopRequested = false
		c.log.Info("generation stopped before dispatch")
		return nil, ErrStopped
	}
	if c.busy {
		return nil, ErrBusy
	}
	doc, err := c.store.Document(c.docID)
	if err != nil {
		return nil, err
	}
	credential := c.credentials(doc.Run.Provider)
	if credential == "" {
		return nil, fmt.Errorf("%w for provider %s", ErrNoCredential, doc.Run.Provider)
	}
	oracle, err := c.oracles(doc.Run.Provider, credential)
	if err != nil {
		return nil, err
	}
	sections, err := c.store.ListOrdered(c.docID)
	if err != nil {
		return nil, err
	}
	history, _ := assemble.History(sections, doc.Run.StopToken)
	cy := &Cycle{
		Request: provider.Request{
			Model:  doc.Run.Model,
			System: doc.Run.SystemPrompt,
			User:   buildUserPrompt(&doc, history, doc.Run.StopToken),
		},
		oracle: oracle,
		run:    doc.Run,
		first:  doc.NextOrdinal == 1,
	}
	c.busy = true
	c.log.Info("requesting section %d from %s (%s)", doc.NextOrdinal, doc.Run.Provider, doc.Run.Model)
	return cy, nil
}

// Execute performs the completion call for a cycle. It is the only
// controller method safe to run off the event loop.
func (c *Controller) Execute(ctx context.Context, cy *Cycle) (string, error) {
	return cy.oracle.Complete(ctx, cy.Request)
}

// Finish settles a cycle: it clears the busy flag on every path, then either
// surfaces the completion error or appends the new section. Auto-advance
// sections after the first are accepted immediately; the first section of a
// run is always a draft awaiting human review.
func (c *Controller) Finish(cy *Cycle, text string, callErr error) (Outcome, error) {
	c.busy = false
	if callErr != nil {
		c.stopRequested = false
		c.log.Error("completion failed: %v", callErr)
		return Outcome{}, callErr
	}
	status := store.StatusDraft
	if cy.run.AutoAdvance && !cy.first {
		status = store.StatusAccepted
	}
	section, err := c.store.Append(c.docID, strings.TrimSpace(text), status)
	if err != nil {
		return Outcome{}, err
	}
	c.log.Info("section %d stored as %s", section.Ordinal, section.Status)
	return Outcome{
		Section:              section,
		ScheduleContinuation: cy.run.AutoAdvance && !cy.first,
	}, nil
}

// RunCycle executes one full cycle synchronously. The TUI splits the cycle
// across its event loop instead; this is for headless callers and tests.
func (c *Controller) RunCycle(ctx context.Context) (Outcome, error) {
	cy, err := c.Begin()
	if err != nil {
		return Outcome{}, err
	}
	text, callErr := c.Execute(ctx, cy)
	return c.Finish(cy, text, callErr)
}

// EvaluateContinuation decides, from durable state only, whether an
// auto-advance run keeps going. A pending stop aborts the evaluation and is
// consumed; the stop token or the accepted-section cap turns auto-advance
// off. The store is re-read here because the human may have edited or
// discarded sections during the settling delay.
func (c *Controller) EvaluateContinuation() (Decision, error) {
	if c.stopRequested {
		c.stopRequested = false
		c.log.Info("auto-advance continuation cancelled")
		return Decision{}, nil
	}
	if c.busy {
		return Decision{}, nil
	}
	doc, err := c.store.Document(c.docID)
	if err != nil {
		return Decision{}, err
	}
	if !doc.Run.AutoAdvance {
		return Decision{}, nil
	}
	sections, err := c.store.ListOrdered(c.docID)
	if err != nil {
		return Decision{}, err
	}
	latest, ok := assemble.Latest(sections)
	stopSeen := ok && doc.Run.StopToken != "" && strings.Contains(latest.Content, doc.Run.StopToken)
	accepted := assemble.CountAccepted(sections)
	if stopSeen || accepted >= doc.Run.MaxSections {
		doc.Run.AutoAdvance = false
		if _, err := c.store.UpdateRunConfig(c.docID, doc.Run); err != nil {
			return Decision{}, err
		}
		if stopSeen {
			c.log.Info("stop token found, auto-advance off")
		} else {
			c.log.Info("accepted %d of %d sections, auto-advance off", accepted, doc.Run.MaxSections)
		}
		return Decision{Halted: true}, nil
	}
	return Decision{Continue: true}, nil
}

// AcceptDraft transitions a draft to accepted. It reports whether a
// continuation evaluation should be scheduled: the hand-off from the
// human-gated first section into an auto-advance run happens here.
func (c *Controller) AcceptDraft(sectionID string) (store.Section, bool, error) {
	section, err := c.store.SetStatus(c.docID, sectionID, store.StatusAccepted)
	if err != nil {
		return store.Section{}, false, err
	}
	doc, err := c.store.Document(c.docID)
	if err != nil {
		return section, false, err
	}
	schedule := doc.Run.AutoAdvance && !c.busy && !c.stopRequested
	return section, schedule, nil
}

// DiscardDraft transitions a draft to discarded.
func (c *Controller) DiscardDraft(sectionID string) (store.Section, error) {
	return c.store.SetStatus(c.docID, sectionID, store.StatusDiscarded)
}

// EditContent replaces a section's content.
func (c *Controller) EditContent(sectionID, text string) (store.Section, error) {
	return c.store.UpdateContent(c.docID, sectionID, text)
}

// UndoLastAccepted removes the most recently accepted section. ok is false
// when there was nothing to undo.
func (c *Controller) UndoLastAccepted() (store.Section, bool, error) {
	section, ok, err := c.store.DeleteMostRecentAccepted(c.docID)
	if err == nil && ok {
		c.log.Info("undo removed section %d", section.Ordinal)
	}
	return section, ok, err
}

// ClearRun removes every section of the document. An in-flight request is
// unaffected.
func (c *Controller) ClearRun() error {
	if err := c.store.Clear(c.docID); err != nil {
		return err
	}
	c.log.Info("run cleared")
	return nil
}

// RequestStop raises the cancellation flag. The flag does not abort an
// in-flight completion; it is consumed by the next pre-flight or
// continuation check.
func (c *Controller) RequestStop() {
	c.stopRequested = true
	c.log.Info("stop requested")
}

// ToggleAutoAdvance switches auto-advance mode and persists the change.
func (c *Controller) ToggleAutoAdvance(on bool) (store.Document, error) {
	doc, err := c.store.Document(c.docID)
	if err != nil {
		return store.Document{}, err
	}
	doc.Run.AutoAdvance = on
	return c.store.UpdateRunConfig(c.docID, doc.Run)
}

// StitchedText returns the accepted sections joined in ordinal order.
func (c *Controller) StitchedText() (string, error) {
	sections, err := c.store.ListOrdered(c.docID)
	if err != nil {
		return "", err
	}
	return assemble.Stitch(sections), nil
}
