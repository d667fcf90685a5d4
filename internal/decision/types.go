package decision

import (
	"time"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
	"github.com/dgnsrekt/gexbrain/internal/indicators"
	"github.com/dgnsrekt/gexbrain/internal/regime"
	"github.com/dgnsrekt/gexbrain/internal/squeeze"
)

// Action is the final verdict.
type Action string

const (
	ActionBuyCall Action = "BUY_CALL"
	ActionBuyPut  Action = "BUY_PUT"
	ActionNoTrade Action = "NO_TRADE"
)

// Direction is the trade side under consideration.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
	DirectionNone Direction = "NONE"
)

// ReasonCode is the machine-checkable rejection code. Every NO_TRADE result
// carries exactly one.
type ReasonCode string

const (
	ReasonMarketClosed        ReasonCode = "MARKET_CLOSED"
	ReasonMissingSpot         ReasonCode = "MISSING_SPOT"
	ReasonMissingTechnicals   ReasonCode = "MISSING_TECHNICALS"
	ReasonSpreadTooWide       ReasonCode = "SPREAD_TOO_WIDE"
	ReasonMacroRiskOff        ReasonCode = "MACRO_RISK_OFF"
	ReasonNoTrigger           ReasonCode = "NO_TRIGGER"
	ReasonInsufficientBars    ReasonCode = "INSUFFICIENT_BARS"
	ReasonConflictingTriggers ReasonCode = "CONFLICTING_TRIGGERS"
	ReasonAILowConviction     ReasonCode = "AI_LOW_CONVICTION"
	ReasonMaxTradesPerHour    ReasonCode = "MAX_TRADES_PER_HOUR"
	ReasonConsecutiveLosses   ReasonCode = "CONSECUTIVE_LOSS_COOLDOWN"
	ReasonCorrelatedExposure  ReasonCode = "MAX_CORRELATED_EXPOSURE"
	ReasonDeltaOutOfRange     ReasonCode = "DELTA_OUT_OF_RANGE"
	ReasonStrikeTooFar        ReasonCode = "STRIKE_TOO_FAR"
)

// MacroRegime is the external macro provider's classification.
type MacroRegime string

const (
	MacroRiskOn   MacroRegime = "RISK_ON"
	MacroRiskOff  MacroRegime = "RISK_OFF"
	MacroCautious MacroRegime = "CAUTIOUS"
)

// MacroInput is the macro regime provider's read.
type MacroInput struct {
	Regime MacroRegime `json:"regime"`
	Score  float64     `json:"score"`
}

// AdvisoryInput is the optional LLM overlay. It is untrusted: it can shift
// conviction by at most two points and can never flip direction.
type AdvisoryInput struct {
	Direction  Direction `json:"direction"`
	Conviction int       `json:"conviction"`
	Reason     string    `json:"reason"`
}

// ContractInput is the candidate contract's quote data, when known.
type ContractInput struct {
	Strike float64 `json:"strike"`
	Delta  float64 `json:"delta"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Input is everything one evaluation needs. The engine never fetches; all
// external reads arrive here.
type Input struct {
	Ticker string
	Now    time.Time
	Spot   float64

	// Bars feed the trigger technicals unless Technicals is already
	// computed by the caller.
	Bars       []gexdata.Bar
	Technicals *indicators.Snapshot

	Summary *gex.Summary
	// ShortGammaPct is the share of absolute gamma that is dealer-short,
	// in percent. Derived from Summary when zero.
	ShortGammaPct float64

	Macro    *MacroInput
	Advisory *AdvisoryInput
	Squeeze  *squeeze.Signal
	Contract *ContractInput

	// OpenPositions lists tickers with currently open positions, used by
	// the correlated-exposure throttle.
	OpenPositions []string
}

// GateResult records one gate's outcome for the audit trail.
type GateResult struct {
	Name       string     `json:"name"`
	Passed     bool       `json:"passed"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// RiskControls are the exit parameters attached to a BUY verdict.
type RiskControls struct {
	PremiumStopPct    float64 `json:"premium_stop_pct"`
	TimeStopMinutes   int     `json:"time_stop_minutes"`
	VWAPFailExitCount int     `json:"vwap_fail_exit_count"`
	PriceInvalidation float64 `json:"price_invalidation"`
}

// Result is the final verdict. Created fresh per evaluation and never
// mutated after return. ReasonCode is non-empty exactly when the action is
// NO_TRADE, and Strategy is always "scalp".
type Result struct {
	ID          string     `json:"id"`
	Ticker      string     `json:"ticker"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
	Action      Action     `json:"action"`
	Direction   Direction  `json:"direction"`
	Conviction  int        `json:"conviction"`
	Strategy    string     `json:"strategy"`
	ReasonCode  ReasonCode `json:"reason_code,omitempty"`
	Reasons     []string   `json:"reasons"`
	Gates       []GateResult

	// DecisionRegime is the 0DTE horizon the verdict is gated on;
	// ContextRegime is the all-expiry aggregate. Both are always carried
	// so a disagreement is never silently conflated.
	DecisionRegime regime.TradingRegime `json:"decision_regime"`
	ContextRegime  regime.TradingRegime `json:"context_regime"`

	RiskControls RiskControls `json:"risk_controls"`
}
