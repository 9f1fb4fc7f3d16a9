// Package speech plays card text aloud through an external text-to-speech program.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Language is a BCP 47 tag understood by the speakers in this package.
type Language string

const (
	Romanian Language = "ro-RO"
	English  Language = "en-US"
)

var (
	ErrCancelled           = errors.New("speech cancelled")
	ErrUnsupportedLanguage = errors.New("unsupported speech language")
)

// Speaker plays text. Speak blocks until playback ends.
type Speaker interface {
	Speak(ctx context.Context, text string, lang Language) error
	CancelAll()
}

// Voice selects the synthesizer voice and speed in words per minute.
type Voice struct {
	Name string
	Rate int
}

// DefaultVoices are espeak-ng voices with Romanian read slower than English.
var DefaultVoices = map[Language]Voice{
	Romanian: {Name: "ro", Rate: 122},
	English:  {Name: "en-us", Rate: 140},
}

// Command speaks by running an espeak-compatible binary once per utterance.
type Command struct {
	binary string
	voices map[Language]Voice
	logger logrus.FieldLogger

	mu       sync.Mutex
	nextID   uint64
	inflight map[uint64]context.CancelFunc
}

// NewCommand returns a Command speaker. A nil voices map uses DefaultVoices.
func NewCommand(binary string, voices map[Language]Voice, logger logrus.FieldLogger) *Command {
	if voices == nil {
		voices = DefaultVoices
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Command{
		binary:   binary,
		voices:   voices,
		logger:   logger,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

func (c *Command) Speak(ctx context.Context, text string, lang Language) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	voice, ok := c.voices[lang]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	ctx, cancel := context.WithCancel(ctx)
	id := c.track(cancel)
	defer c.untrack(id)

	cmd := exec.CommandContext(ctx, c.binary, "-v", voice.Name, "-s", strconv.Itoa(voice.Rate), "--", text)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.WithFields(logrus.Fields{"lang": lang, "voice": voice.Name}).Debug("Speaking")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("failed to run %s: %w: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CancelAll stops every utterance that is still playing.
func (c *Command) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.inflight {
		cancel()
		delete(c.inflight, id)
	}
}

func (c *Command) track(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.inflight[c.nextID] = cancel
	return c.nextID
}

func (c *Command) untrack(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.inflight[id]; ok {
		cancel()
		delete(c.inflight, id)
	}
}

func (c *Command) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Fallback tries Secondary when Primary fails for any reason other than
// cancellation.
type Fallback struct {
	Primary   Speaker
	Secondary Speaker
}

func (f Fallback) Speak(ctx context.Context, text string, lang Language) error {
	err := f.Primary.Speak(ctx, text, lang)
	if err == nil || errors.Is(err, ErrCancelled) || ctx.Err() != nil || f.Secondary == nil {
		return err
	}
	if err2 := f.Secondary.Speak(ctx, text, lang); err2 != nil {
		return errors.Join(err, err2)
	}
	return nil
}

func (f Fallback) CancelAll() {
	f.Primary.CancelAll()
	if f.Secondary != nil {
		f.Secondary.CancelAll()
	}
}

// Nop is used when text-to-speech is disabled.
type Nop struct{}

func (Nop) Speak(context.Context, string, Language) error { return nil }
func (Nop) CancelAll()                                     {}
