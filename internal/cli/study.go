package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	gosync "sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/session"
	"github.com/netn10/learn-romanian/internal/speech"
	"github.com/netn10/learn-romanian/internal/storage"
)

const studyHelp = `Commands:
  Enter, n   next card
  r          reveal / hide the answer
  f          flip prompt language
  p          pause / resume the timer
  s          skip the timer and reveal
  t          restart the timer
  ro, en     pronounce the Romanian / English side
  shuffle    toggle shuffled deck mode
  timed      toggle timed mode
  h, ?       this help
  q          quit`

func newStudyCmd(a *app) *cobra.Command {
	var (
		seed uint64
		tags []string
	)

	cmd := &cobra.Command{
		Use:   "study",
		Short: "Study cards interactively",
		Long: `Run a study session in the terminal.

In shuffled mode every card is shown once before the deck is dealt again.
In timed mode the answer is revealed when the countdown ends.

` + studyHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			cards, _, err := db.ListCards(cmd.Context(), storage.CardQuery{Tags: tags})
			if err != nil {
				return fmt.Errorf("load cards: %w", err)
			}
			if len(cards) == 0 {
				return errors.New("no cards to study, import a word list first")
			}

			var rng *rand.Rand
			if cmd.Flags().Changed("seed") {
				rng = rand.New(rand.NewPCG(seed, seed))
			}

			view := &studyView{out: cmd.OutOrStdout()}
			study := a.cfg.Study
			ctrl := session.New(cards, session.Options{
				Shuffled:         study.Shuffle,
				Timed:            study.Timed,
				TimerSeconds:     study.TimerSeconds,
				AllowEarlyReveal: study.AllowEarlyReveal,
				Rand:             rng,
				Scheduler:        session.TickerScheduler{},
				Speaker:          a.speaker(),
				OnChange:         view.onChange,
			})
			defer ctrl.Close()

			a.logger.WithFields(logrus.Fields{
				"cards":    len(cards),
				"shuffled": study.Shuffle,
				"timed":    study.Timed,
			}).Debug("Starting study session")
			fmt.Fprintf(view.out, "%d cards. Type h for help.\n", len(cards))
			return runStudy(cmd.Context(), a.logger, ctrl, study.TimerSeconds, cmd.InOrStdin(), view)
		},
	}

	f := cmd.Flags()
	f.Bool("shuffle", false, "Show every card once per round")
	f.Bool("timed", false, "Reveal answers after a countdown")
	f.Int("seconds", 5, "Countdown length in seconds")
	f.Bool("allow-early-reveal", true, "Allow revealing before the countdown ends")
	f.Bool("tts", false, "Enable pronunciation")
	f.Uint64Var(&seed, "seed", 0, "Seed for reproducible card order")
	f.StringSliceVarP(&tags, "tag", "t", nil, "Only study cards with any of these tags")
	return cmd
}

// speaker builds the configured text-to-speech chain.
func (a *app) speaker() speech.Speaker {
	if !a.cfg.Study.TTS {
		return speech.Nop{}
	}
	sc := a.cfg.Speech
	voices := map[speech.Language]speech.Voice{
		speech.Romanian: {Name: sc.RomanianVoice, Rate: sc.RomanianRate},
		speech.English:  {Name: sc.EnglishVoice, Rate: sc.EnglishRate},
	}
	primary := speech.NewCommand(sc.Binary, voices, a.logger)
	if sc.FallbackBinary == "" {
		return primary
	}
	return speech.Fallback{Primary: primary, Secondary: speech.NewCommand(sc.FallbackBinary, voices, a.logger)}
}

func runStudy(ctx context.Context, logger logrus.FieldLogger, ctrl *session.Controller, seconds int, in io.Reader, view *studyView) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		line = strings.ToLower(line)
		switch line {
		case "", "n", "next":
			err := ctrl.Next(ctx)
			if errors.Is(err, session.ErrDeckComplete) {
				view.printf("Deck complete! Dealing a new round.\n")
				ctrl.Reshuffle()
				err = ctrl.Next(ctx)
			}
			if err != nil {
				return err
			}
		case "r", "reveal":
			before := ctrl.State()
			ctrl.ToggleReveal()
			if ctrl.State().Revealed == before.Revealed && before.Card != nil {
				view.printf("The answer is locked until the timer ends.\n")
				continue
			}
		case "f", "flip":
			ctrl.FlipDirection()
		case "p", "pause":
			if ctrl.State().Timer.Status == session.TimerPaused {
				ctrl.ResumeTimer()
			} else {
				ctrl.PauseTimer()
			}
		case "s", "skip":
			ctrl.SkipTimer()
		case "t", "timer":
			ctrl.ResetTimer()
			ctrl.StartTimer(seconds)
		case "ro", "en":
			lang := speech.Romanian
			if line == "en" {
				lang = speech.English
			}
			go func() {
				if err := ctrl.Pronounce(ctx, lang); err != nil && !errors.Is(err, speech.ErrCancelled) {
					logger.WithError(err).Warn("Pronunciation failed")
				}
			}()
			continue
		case "shuffle":
			ctrl.SetShuffled(!ctrl.State().Shuffled)
			view.printf("Shuffled deck: %t\n", ctrl.State().Shuffled)
		case "timed":
			ctrl.SetTimed(!ctrl.State().Timed)
			view.printf("Timed mode: %t\n", ctrl.State().Timed)
		case "h", "?", "help":
			view.printf("%s\n", studyHelp)
			continue
		case "q", "quit", "exit":
			return nil
		default:
			view.printf("Unknown command %q, type h for help.\n", line)
			continue
		}
		view.render(ctrl.State())
	}
}

// studyView serializes terminal output between the input loop and timer
// callbacks.
type studyView struct {
	mu        gosync.Mutex
	out       io.Writer
	lastTimer session.TimerStatus
}

func (v *studyView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

// onChange announces a countdown reaching zero.
func (v *studyView) onChange(st session.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	expired := st.Timer.Status == session.TimerExpired && v.lastTimer != session.TimerExpired
	v.lastTimer = st.Timer.Status
	if expired && st.Card != nil {
		fmt.Fprintf(v.out, "Time's up! = %s\n", st.Answer())
	}
}

func (v *studyView) render(st session.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if st.Card == nil {
		fmt.Fprintln(v.out, "No card shown. Press Enter to draw one.")
		return
	}
	header := fmt.Sprintf("[%d cards]", st.Total)
	if st.Shuffled {
		header = fmt.Sprintf("[%d/%d %d%%]", st.Completed, st.Total, st.Progress)
	}
	dir := "ro -> en"
	if st.Direction == session.PromptEnglish {
		dir = "en -> ro"
	}
	fmt.Fprintf(v.out, "%s %s\n  %s\n", header, dir, st.Prompt())
	if st.Revealed {
		fmt.Fprintf(v.out, "  = %s\n", st.Answer())
	}
	if st.Timer.Status != session.TimerStopped {
		fmt.Fprintf(v.out, "  timer: %ds %s\n", st.Timer.Remaining, st.Timer.Status)
	}
}
