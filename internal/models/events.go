package models

// Channel names the pipeline publishes on. The broadcaster itself accepts any name.
const (
	ChannelPrices   = "prices"
	ChannelSignals  = "signals"
	ChannelPatterns = "patterns"
	ChannelNews     = "news"
	ChannelTrades   = "trades"
)

// EventType tags the payload carried inside a broadcast.
type EventType string

const (
	EventNewSignal         EventType = "new_signal"
	EventSignalDeactivated EventType = "signal_deactivated"
	EventNewPattern        EventType = "new_pattern"
	EventPriceUpdate       EventType = "price_update"
	EventIndicators        EventType = "indicators"
)

// SignalEvent announces a new signal.
type SignalEvent struct {
	Type   EventType `json:"type"`
	Signal *Signal   `json:"signal"`
}

// SignalDeactivatedEvent announces that a signal is no longer active.
type SignalDeactivatedEvent struct {
	Type EventType `json:"type"`
	ID   string    `json:"id"`
}

// PatternEvent announces a newly detected pattern.
type PatternEvent struct {
	Type    EventType      `json:"type"`
	Pattern *PatternRecord `json:"pattern"`
}

// PriceUpdateEvent carries the latest close for a symbol.
type PriceUpdateEvent struct {
	Type          EventType `json:"type"`
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
}

// IndicatorsEvent carries a fresh indicator snapshot.
type IndicatorsEvent struct {
	Type     EventType          `json:"type"`
	Snapshot *IndicatorSnapshot `json:"snapshot"`
}
