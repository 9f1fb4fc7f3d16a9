// Package session drives a single study interaction: which card is shown,
// whether its answer is visible, and the optional reveal countdown.
package session

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/speech"
)

const tickInterval = time.Second

var (
	// ErrNoCards is reported when there is nothing to draw from.
	ErrNoCards = domain.ErrNoCards
	// ErrDeckComplete means every card of the shuffled deck was shown. The
	// caller decides when to Reshuffle.
	ErrDeckComplete  = errors.New("deck completed")
	ErrNoCurrentCard = errors.New("no current card")
)

// Phase is the visible state of the current card.
type Phase int

const (
	Idle Phase = iota
	Showing
	Revealed
)

func (p Phase) String() string {
	switch p {
	case Showing:
		return "showing"
	case Revealed:
		return "revealed"
	default:
		return "idle"
	}
}

// TimerStatus is the countdown sub-state layered on Showing and Revealed.
type TimerStatus int

const (
	TimerStopped TimerStatus = iota
	TimerRunning
	TimerPaused
	TimerExpired
)

func (s TimerStatus) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerExpired:
		return "expired"
	default:
		return "stopped"
	}
}

// Direction selects which language is the prompt.
type Direction int

const (
	PromptRomanian Direction = iota
	PromptEnglish
)

// Timer is the reveal countdown in whole seconds.
type Timer struct {
	Duration  int
	Remaining int
	Status    TimerStatus
}

// Running reports whether the countdown is ticking.
func (t Timer) Running() bool { return t.Status == TimerRunning }

// Picker supplies cards for free random draws.
type Picker interface {
	RandomCard(ctx context.Context) (*domain.Card, error)
}

// Options configures a Controller. Zero values pick sensible defaults.
type Options struct {
	Shuffled         bool
	Timed            bool
	TimerSeconds     int
	AllowEarlyReveal bool

	Rand      *rand.Rand
	Scheduler Scheduler
	Speaker   speech.Speaker
	// Picker, when set, replaces the local card set for free random draws.
	Picker   Picker
	OnChange func(State)
}

// State is a snapshot of the controller.
type State struct {
	Phase     Phase
	Card      *domain.Card
	Revealed  bool
	Direction Direction
	Timer     Timer
	Shuffled  bool
	Timed     bool

	Progress  int
	Remaining int
	Completed int
	Total     int
}

// Prompt is the side shown before reveal.
func (s State) Prompt() string {
	if s.Card == nil {
		return ""
	}
	if s.Direction == PromptEnglish {
		return s.Card.English
	}
	return s.Card.Romanian
}

// Answer is the side hidden until reveal.
func (s State) Answer() string {
	if s.Card == nil {
		return ""
	}
	if s.Direction == PromptEnglish {
		return s.Card.Romanian
	}
	return s.Card.English
}

// Controller is safe for concurrent use; timer ticks arrive on the
// scheduler's goroutine.
type Controller struct {
	mu sync.Mutex

	rng       *rand.Rand
	scheduler Scheduler
	speaker   speech.Speaker
	picker    Picker
	onChange  func(State)

	shuffled         bool
	timed            bool
	timerSeconds     int
	allowEarlyReveal bool

	cards     []domain.Card
	remaining []domain.Card
	completed []domain.Card
	deckSize  int
	progress  int

	current   *domain.Card
	revealed  bool
	direction Direction
	timer     Timer

	generation uint64
	cancelTick func()
	closed     bool
}

// New returns a Controller over cards. In shuffled mode the deck is dealt
// immediately.
func New(cards []domain.Card, opts Options) *Controller {
	c := &Controller{
		rng:              opts.Rand,
		scheduler:        opts.Scheduler,
		speaker:          opts.Speaker,
		picker:           opts.Picker,
		onChange:         opts.OnChange,
		shuffled:         opts.Shuffled,
		timed:            opts.Timed,
		timerSeconds:     opts.TimerSeconds,
		allowEarlyReveal: opts.AllowEarlyReveal,
		cards:            cloneCards(cards),
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if c.scheduler == nil {
		c.scheduler = TickerScheduler{}
	}
	if c.speaker == nil {
		c.speaker = speech.Nop{}
	}
	if c.shuffled {
		c.initializeDeckLocked(c.cards)
	}
	return c
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Deck returns copies of the remaining and completed sequences.
func (c *Controller) Deck() (remaining, completed []domain.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneCards(c.remaining), cloneCards(c.completed)
}

// DrawNext selects the next card. It clears the reveal, stops any timer and
// silences speech. On error the session is left unchanged.
func (c *Controller) DrawNext(ctx context.Context) error {
	c.mu.Lock()
	if c.shuffled {
		err := c.drawFromDeckLocked()
		c.unlockAndNotify(err == nil)
		return err
	}
	picker := c.picker
	c.mu.Unlock()

	if picker != nil {
		card, err := picker.RandomCard(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.showLocked(*card)
		c.unlockAndNotify(true)
		return nil
	}

	c.mu.Lock()
	if len(c.cards) == 0 {
		c.mu.Unlock()
		return ErrNoCards
	}
	c.showLocked(c.cards[c.rng.IntN(len(c.cards))])
	c.unlockAndNotify(true)
	return nil
}

// Next draws a card and, in timed mode, starts the countdown for it.
func (c *Controller) Next(ctx context.Context) error {
	if err := c.DrawNext(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	timed, seconds := c.timed, c.timerSeconds
	c.mu.Unlock()
	if timed {
		c.StartTimer(seconds)
	}
	return nil
}

// InitializeDeck deals a fresh random permutation of cards, which also
// becomes the session's card set.
func (c *Controller) InitializeDeck(cards []domain.Card) {
	c.mu.Lock()
	c.cards = cloneCards(cards)
	c.initializeDeckLocked(c.cards)
	c.unlockAndNotify(true)
}

// Reshuffle deals the current card set again.
func (c *Controller) Reshuffle() {
	c.mu.Lock()
	c.initializeDeckLocked(c.cards)
	c.unlockAndNotify(true)
}

// SetCards replaces the card set. In shuffled mode the deck is re-dealt.
func (c *Controller) SetCards(cards []domain.Card) {
	c.mu.Lock()
	c.cards = cloneCards(cards)
	if c.shuffled {
		c.initializeDeckLocked(c.cards)
	}
	c.unlockAndNotify(true)
}

// SetShuffled switches deck mode. Turning it off discards the deck and the
// current card.
func (c *Controller) SetShuffled(on bool) {
	c.mu.Lock()
	if on == c.shuffled {
		c.mu.Unlock()
		return
	}
	c.shuffled = on
	if on {
		c.initializeDeckLocked(c.cards)
	} else {
		c.remaining, c.completed = nil, nil
		c.deckSize, c.progress = 0, 0
		c.clearCardLocked()
	}
	c.unlockAndNotify(true)
}

// SetTimed switches timed mode. Turning it off discards the countdown.
func (c *Controller) SetTimed(on bool) {
	c.mu.Lock()
	if on == c.timed {
		c.mu.Unlock()
		return
	}
	c.timed = on
	if !on {
		c.stopTimerLocked()
		c.timer = Timer{}
	}
	c.unlockAndNotify(true)
}

// ToggleReveal flips the answer visibility. While a countdown runs in timed
// mode it only works when early reveal is allowed, and it stops the countdown.
func (c *Controller) ToggleReveal() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	if c.timer.Running() {
		if c.timed && !c.allowEarlyReveal {
			c.mu.Unlock()
			return
		}
		c.stopTimerLocked()
		c.timer.Remaining = 0
		c.timer.Status = TimerStopped
	}
	c.revealed = !c.revealed
	c.unlockAndNotify(true)
}

// StartTimer hides the answer and counts down seconds before revealing it.
func (c *Controller) StartTimer(seconds int) {
	c.mu.Lock()
	if c.current == nil || seconds <= 0 || c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.revealed = false
	c.timer = Timer{Duration: seconds, Remaining: seconds, Status: TimerRunning}
	c.scheduleLocked()
	c.unlockAndNotify(true)
}

// Tick advances the running countdown by one second.
func (c *Controller) Tick() {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.tick(gen)
}

// PauseTimer freezes a running countdown.
func (c *Controller) PauseTimer() {
	c.mu.Lock()
	if c.timer.Status != TimerRunning {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.timer.Status = TimerPaused
	c.unlockAndNotify(true)
}

// ResumeTimer continues a paused countdown from where it stopped.
func (c *Controller) ResumeTimer() {
	c.mu.Lock()
	if c.timer.Status != TimerPaused || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer.Status = TimerRunning
	c.scheduleLocked()
	c.unlockAndNotify(true)
}

// SkipTimer ends the countdown and reveals the answer.
func (c *Controller) SkipTimer() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.timer.Remaining = 0
	c.timer.Status = TimerExpired
	c.revealed = true
	c.unlockAndNotify(true)
}

// ResetTimer discards the countdown and hides the answer.
func (c *Controller) ResetTimer() {
	c.mu.Lock()
	if c.timer.Status == TimerStopped && c.timer.Remaining == 0 {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.timer.Remaining = 0
	c.timer.Status = TimerStopped
	c.revealed = false
	c.unlockAndNotify(true)
}

// FlipDirection swaps prompt and answer languages for the current card.
func (c *Controller) FlipDirection() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	if c.direction == PromptRomanian {
		c.direction = PromptEnglish
	} else {
		c.direction = PromptRomanian
	}
	c.unlockAndNotify(true)
}

// Pronounce silences any playback and speaks the current card's text in
// lang. It blocks until playback ends.
func (c *Controller) Pronounce(ctx context.Context, lang speech.Language) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoCurrentCard
	}
	text := c.current.Romanian
	if lang == speech.English {
		text = c.current.English
	}
	speaker := c.speaker
	c.mu.Unlock()

	speaker.CancelAll()
	return speaker.Speak(ctx, text, lang)
}

// Close cancels the countdown and any speech. Timers cannot be started
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
	if c.timer.Status == TimerRunning {
		c.timer.Status = TimerPaused
	}
	c.speaker.CancelAll()
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.timer.Status != TimerRunning {
		c.mu.Unlock()
		return
	}
	c.timer.Remaining--
	if c.timer.Remaining <= 0 {
		c.timer.Remaining = 0
		c.timer.Status = TimerExpired
		c.revealed = true
		c.stopTimerLocked()
	}
	c.unlockAndNotify(true)
}

func (c *Controller) drawFromDeckLocked() error {
	if len(c.remaining) == 0 {
		if len(c.completed) == 0 {
			return ErrNoCards
		}
		return ErrDeckComplete
	}
	next := c.remaining[0]
	c.remaining = c.remaining[1:]
	c.completed = append(c.completed, next)
	c.progress = percent(len(c.completed), c.deckSize)
	c.showLocked(next)
	return nil
}

func (c *Controller) showLocked(card domain.Card) {
	c.stopTimerLocked()
	c.timer = Timer{}
	c.speaker.CancelAll()
	c.current = &card
	c.revealed = false
	c.direction = Direction(c.rng.IntN(2))
}

func (c *Controller) initializeDeckLocked(cards []domain.Card) {
	deck := cloneCards(cards)
	c.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	c.remaining = deck
	c.completed = nil
	c.deckSize = len(deck)
	c.progress = 0
	c.clearCardLocked()
}

func (c *Controller) clearCardLocked() {
	c.stopTimerLocked()
	c.timer = Timer{}
	c.speaker.CancelAll()
	c.current = nil
	c.revealed = false
}

// scheduleLocked starts ticking for a new generation so that callbacks from
// any earlier countdown are ignored.
func (c *Controller) scheduleLocked() {
	c.generation++
	gen := c.generation
	c.cancelTick = c.scheduler.Every(tickInterval, func() { c.tick(gen) })
}

func (c *Controller) stopTimerLocked() {
	c.generation++
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
}

func (c *Controller) snapshotLocked() State {
	s := State{
		Revealed:  c.revealed,
		Direction: c.direction,
		Timer:     c.timer,
		Shuffled:  c.shuffled,
		Timed:     c.timed,
		Progress:  c.progress,
		Remaining: len(c.remaining),
		Completed: len(c.completed),
		Total:     c.deckSize,
	}
	if !c.shuffled {
		s.Total = len(c.cards)
	}
	switch {
	case c.current == nil:
		s.Phase = Idle
	case c.revealed:
		s.Phase = Revealed
	default:
		s.Phase = Showing
	}
	if c.current != nil {
		card := *c.current
		s.Card = &card
	}
	return s
}

func (c *Controller) unlockAndNotify(changed bool) {
	onChange := c.onChange
	var s State
	if changed && onChange != nil {
		s = c.snapshotLocked()
	}
	c.mu.Unlock()
	if changed && onChange != nil {
		onChange(s)
	}
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

func cloneCards(cards []domain.Card) []domain.Card {
	if cards == nil {
		return nil
	}
	out := make([]domain.Card, len(cards))
	copy(out, cards)
	return out
}
