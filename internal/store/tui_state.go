package store

import (
	"context"
	"encoding/json"
	"strings"
)

const keyTUIState = "tui.state"

// TUIState is what the board remembers between launches: the open tab and
// the selected lane. Missing or corrupt state loads as the default.
type TUIState struct {
	Version int `json:"version"`

	// Tab is one of: board|users
	Tab string `json:"tab,omitempty"`

	// SelectedLane is the wire status of the last focused board lane.
	SelectedLane string `json:"selectedLane,omitempty"`
}

func (s Store) LoadTUIState(ctx context.Context) (*TUIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return &TUIState{Version: 1}, nil
	}
	raw, ok, err := s.Get(ctx, keyTUIState)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TUIState{Version: 1}, nil
	}
	var st TUIState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// Corrupted; treat as missing.
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s Store) SaveTUIState(ctx context.Context, st *TUIState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Set(ctx, keyTUIState, string(b))
}
