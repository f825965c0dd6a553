package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pattern-trader/internal/models"
	"pattern-trader/internal/stream"
	"pattern-trader/pkg/utils"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		url      string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live events from a running server",
		Long: `Connect to a running 'pattern-trader serve' WebSocket endpoint, subscribe to
the chosen channels and print every event. Reconnects after 3s when the
connection drops. Stop with Ctrl+C.`,
		Example: `  pattern-trader watch
  pattern-trader watch --channels signals,patterns --json
  pattern-trader watch --url ws://trader.local:8080/ws`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if url == "" {
				url = wsURL(app.Config.Server.Addr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := stream.NewConsumer(stream.ConsumerConfig{
				URL:            url,
				Channels:       channels,
				ReconnectDelay: 3 * time.Second,
			}, app.Logger)

			if !output.IsJSON() {
				output.Info("Watching %s on %s", strings.Join(channels, ", "), url)
			}
			return consumer.Run(ctx, func(ev stream.Event) {
				printEvent(output, ev)
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "WebSocket URL (default: derived from server.addr)")
	cmd.Flags().StringSliceVarP(&channels, "channels", "c",
		[]string{models.ChannelPrices, models.ChannelSignals, models.ChannelPatterns, models.ChannelNews, models.ChannelTrades},
		"channels to subscribe to")

	return cmd
}

// wsURL turns a listen address such as ":8080" into a local WebSocket URL.
func wsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + "/ws"
}

// eventHeader is the common part of every pipeline event payload.
type eventHeader struct {
	Type models.EventType `json:"type"`
}

func printEvent(output *Output, ev stream.Event) {
	if output.IsJSON() {
		var compact bytes.Buffer
		if err := json.Compact(&compact, ev.Data); err != nil {
			compact.Write(ev.Data)
		}
		output.Printf("{\"channel\":%q,\"data\":%s}\n", ev.Channel, compact.String())
		return
	}

	stamp := output.DimText(time.Now().Format("15:04:05"))

	var header eventHeader
	_ = json.Unmarshal(ev.Data, &header)

	switch header.Type {
	case models.EventPriceUpdate:
		var e models.PriceUpdateEvent
		if json.Unmarshal(ev.Data, &e) == nil {
			output.Printf("%s %-9s %-10s %s %s\n", stamp, ev.Channel, e.Symbol,
				output.BoldText(utils.FormatPrice(e.Price)), output.FormatChange(e.Change, e.ChangePercent))
			return
		}
	case models.EventIndicators:
		var e models.IndicatorsEvent
		if json.Unmarshal(ev.Data, &e) == nil && e.Snapshot != nil {
			snap := e.Snapshot
			output.Printf("%s %-9s %-10s RSI %s  MACD %s  ATR %s\n", stamp, ev.Channel, snap.Symbol,
				utils.FormatOptional(snap.RSI, 1), utils.FormatOptional(snap.MACD, 3), utils.FormatOptional(snap.ATR, 2))
			return
		}
	case models.EventNewSignal:
		var e models.SignalEvent
		if json.Unmarshal(ev.Data, &e) == nil && e.Signal != nil {
			s := e.Signal
			output.Printf("%s %-9s %-10s %s entry %s target %s stop %s %s\n", stamp, ev.Channel, s.Symbol,
				output.Direction(s.Direction), utils.FormatPrice(s.EntryPrice), utils.FormatPrice(s.TargetPrice),
				utils.FormatPrice(s.StopLoss), output.Confidence(s.Confidence))
			return
		}
	case models.EventSignalDeactivated:
		var e models.SignalDeactivatedEvent
		if json.Unmarshal(ev.Data, &e) == nil {
			output.Printf("%s %-9s signal %s deactivated\n", stamp, ev.Channel, e.ID)
			return
		}
	case models.EventNewPattern:
		var e models.PatternEvent
		if json.Unmarshal(ev.Data, &e) == nil && e.Pattern != nil {
			p := e.Pattern
			output.Printf("%s %-9s %-10s %s %s %d%% %s\n", stamp, ev.Channel, p.Symbol, p.PatternName,
				p.PatternType, p.Confidence, p.Status)
			return
		}
	}

	output.Printf("%s %-9s %s\n", stamp, ev.Channel, string(ev.Data))
}
