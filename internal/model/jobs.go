package model

// FetchCandlesJob is the Fetch-stage queue payload: §4.3.1.
type FetchCandlesJob struct {
	Symbol string `json:"symbol"`
}

// EvaluateSignalJob is the Evaluate-stage queue payload: §4.3.2.
type EvaluateSignalJob struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// StoreSignalJob is the Store-stage queue payload: §4.3.3.
type StoreSignalJob struct {
	StrategyID int64  `json:"strategy_id"`
	Signal     Signal `json:"signal"`
}

const (
	// FetchStream, EvalStream, StoreStream name the three job queues.
	FetchStream = "jobs:fetch_candles"
	EvalStream  = "jobs:evaluate_signal"
	StoreStream = "jobs:store_signal"

	// MinCandles is the evaluator lead-in below which evaluation is refused.
	MinCandles = 50
)
