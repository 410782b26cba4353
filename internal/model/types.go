// Package model defines shared data structures.
package model

import "time"

// DictionaryConfig is one entry of the dictionary stack, highest priority
// first as written in the configuration file.
type DictionaryConfig struct {
	Path    string
	Enabled bool
}

// EngineConfig defines the translation engine settings.
type EngineConfig struct {
	SpacePlacement   string
	StartAttached    bool
	StartCapitalized bool
	UndoLevels       int
	SystemName       string
	SystemFile       string
	SystemKeymap     string
	Dictionaries     []DictionaryConfig
}

// TrainerConfig defines drill settings.
type TrainerConfig struct {
	Words      int
	WordsFile  string
	FocusWeak  bool
	WeakTop    int
	WeakFactor float64
	WeakWindow int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	System      string
	Since       *time.Time
	Last        int
	CurveWindow int
	Words       string
}

// SessionStats captures a completed drill.
type SessionStats struct {
	StartedAt      time.Time
	EndedAt        time.Time
	Words          int
	System         string
	CorrectWords   int
	IncorrectWords int
	Strokes        int
	Corrections    int
	DurationMs     int64
}

// StrokeLog is one stroke of a drill with what it produced.
type StrokeLog struct {
	// ID is the id of the engine event that reported the stroke.
	ID        string
	Seq       int
	Stroke    string
	Output    string
	Undo      bool
	LatencyMs int64
}

// WordStats stores per-word results for a session.
type WordStats struct {
	Word         string
	Correct      int
	Incorrect    int
	Strokes      int
	LatencySumMs int64
	LatencyCount int64
}

// WordAggregate aggregates word stats across sessions.
type WordAggregate struct {
	Word         string
	Correct      int
	Incorrect    int
	Strokes      int
	LatencySumMs int64
	LatencyCount int64
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID      int64
	EndedAt        time.Time
	CorrectWords   int
	IncorrectWords int
	Strokes        int
	Corrections    int
	DurationMs     int64
}
