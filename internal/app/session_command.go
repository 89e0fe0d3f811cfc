package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/intent"
	"github.com/ggonzalez94/defi-intents/internal/metrics"
	"github.com/ggonzalez94/defi-intents/internal/order"
	"github.com/ggonzalez94/defi-intents/internal/out"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/schema"
	"github.com/ggonzalez94/defi-intents/internal/wallet"
)

const sessionHelp = `Type an instruction, then "execute" to place it:
  swap 10 USDC to WETH on arbitrum
  bridge 5 USDC from arbitrum to base
  stake 100 USDC into 0x... on base
Commands: quote (show current quote), execute, retry, chain <name>, help, quit`

func (s *runtimeState) newSessionCommand() *cobra.Command {
	var chainArg, metricsAddr string
	var color bool
	var sf signerFlags
	cmd := &cobra.Command{
		Use:         "session",
		Short:       "Interactive prompt: describe a trade, review the live quote, execute it",
		Annotations: map[string]string{schema.AnnotationSigns: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var chainID int64
			if strings.TrimSpace(chainArg) != "" {
				chain, err := id.ParseChain(chainArg)
				if err != nil {
					return err
				}
				chainID = chain.ID
			}
			startChain := chainID
			if startChain == 0 {
				startChain = 1
			}
			w, err := s.newWallet(sf, startChain)
			if err != nil {
				return err
			}
			reporter := &sessionReporter{printer: out.NewPrinter(s.runner.stdout, color)}
			machine, err := s.newMachine(w, reporter)
			if err != nil {
				return err
			}

			if addr := firstNonEmpty(metricsAddr, s.settings.MetricsAddr); addr != "" {
				shutdown := s.serveMetrics(addr)
				defer shutdown()
			}

			cs := &chatSession{
				state:   s,
				wallet:  w,
				machine: machine,
				printer: reporter.printer,
				chainID: chainID,
			}
			return cs.loop(ctx)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Default chain for instructions that don't name one")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	cmd.Flags().BoolVar(&color, "color", false, "Colour session output")
	sf.register(cmd)
	return cmd
}

func (s *runtimeState) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).WithField("addr", addr).Warn("metrics server stopped")
		}
	}()
	s.logger.WithField("addr", addr).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// chatSession holds the conversation state: the active chain, the quote on
// display and the last order attempt.
type chatSession struct {
	state   *runtimeState
	wallet  *wallet.Local
	machine *order.Machine
	printer *out.Printer
	chainID int64

	current *quotes.Session
	// shown is the quote last printed; execute and retry place it, never a
	// refresh the user has not seen.
	shown *quotes.Quote
	last  *order.Attempt
}

func (c *chatSession) loop(ctx context.Context) error {
	defer c.closeQuote()
	c.printer.Plain("%s", sessionHelp)
	if addr := c.wallet.Address(); addr != "" {
		c.printer.Info("wallet %s", addr)
	} else {
		c.printer.Warn("no signing key configured; quotes only")
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _ = io.WriteString(c.state.runner.stderr, "> ")
		line, err := c.state.input.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "read input", err)
		}
		if done := c.handle(ctx, strings.TrimSpace(line)); done {
			return nil
		}
	}
}

// handle runs one line and reports whether the session should end.
func (c *chatSession) handle(ctx context.Context, line string) bool {
	word, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(word) {
	case "":
	case "quit", "exit":
		return true
	case "help":
		c.printer.Plain("%s", sessionHelp)
	case "chain":
		chain, err := id.ParseChain(rest)
		if err != nil {
			c.report(err)
			return false
		}
		c.chainID = chain.ID
		c.printer.Info("default chain set to %s", chain.Name)
	case "quote":
		c.showQuote()
	case "execute", "confirm":
		c.execute(ctx)
	case "retry":
		c.retry(ctx)
	default:
		c.quote(ctx, line)
	}
	return false
}

func (c *chatSession) quote(ctx context.Context, line string) {
	in, err := intent.Parse(line)
	if err != nil {
		c.report(err)
		return
	}
	if in.ChainID == 0 {
		in.ChainID = c.chainID
	}
	priced, err := c.state.priceIntent(ctx, in, c.wallet.Address())
	if err != nil {
		c.report(err)
		return
	}
	svc, err := c.state.services()
	if err != nil {
		c.report(err)
		return
	}
	c.closeQuote()
	c.current = svc.manager.Open(priced.quote, priced.refresher)
	c.last = nil
	c.showQuote()
}

func (c *chatSession) showQuote() {
	if c.current == nil {
		c.printer.Warn("no quote yet")
		return
	}
	q := c.current.Current()
	c.shown = q
	c.printer.Plain("quote #%d: %s", q.ID, summary(q))
	if q.NetworkFee != nil {
		c.printer.Plain("  network fee ~%s %s", id.FormatAmount(q.NetworkFee, 18), id.ChainByID(q.ChainID).Native)
	}
	if !c.current.Authoritative() {
		c.printer.Warn("  this quote has been replaced; ask again for a fresh one")
	}
}

func (c *chatSession) execute(ctx context.Context) {
	if c.current == nil {
		c.printer.Warn("nothing to execute; describe a trade first")
		return
	}
	c.last = c.machine.Run(ctx, c.request())
}

func (c *chatSession) retry(ctx context.Context) {
	if c.current == nil || c.last == nil {
		c.printer.Warn("nothing to retry")
		return
	}
	next, err := c.machine.Retry(ctx, c.last, c.request())
	if err != nil {
		c.report(err)
		return
	}
	c.last = next
}

func (c *chatSession) request() order.Request {
	return order.Request{Quote: c.shown, Wallet: c.wallet.Address(), Session: c.current}
}

func (c *chatSession) closeQuote() {
	if c.current != nil {
		c.current.Close()
	}
}

func (c *chatSession) report(err error) {
	if clierr.KindOf(err) != clierr.KindNone {
		c.printer.Fail("%s", clierr.UserMessage(err))
		c.state.logger.WithError(err).Debug("request failed")
		return
	}
	c.printer.Fail("%s", err.Error())
}

// sessionReporter narrates order progress as it happens.
type sessionReporter struct {
	printer *out.Printer
}

func (r *sessionReporter) OrderStarted(a *order.Attempt) {
	if a.PreviousID != "" {
		r.printer.Info("retrying order (attempt %s)", shortID(a.ID))
		return
	}
	r.printer.Info("placing order (attempt %s)", shortID(a.ID))
}

func (r *sessionReporter) OrderTransitioned(a *order.Attempt, to order.State) {
	if to.Terminal() {
		return
	}
	r.printer.Plain("  %s", to)
}

func (r *sessionReporter) OrderFinished(a *order.Attempt) {
	if a.Succeeded() {
		r.printer.Success("%s", a.Message)
		return
	}
	r.printer.Fail("%s", a.Message)
	if a.ErrorKind.Retryable() {
		r.printer.Plain("  type \"retry\" to try again")
	}
}

func shortID(v string) string {
	if len(v) > 8 {
		return v[:8]
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
