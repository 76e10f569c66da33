package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// HistoryManager owns the ordered, role-alternating turn log sent to the
// language model. After initialization the log is one context turn, one
// synthetic user turn, then strictly alternating model/user turns. Turns are
// never mutated after append; the whole log is replaced on reset.
type HistoryManager struct {
	turns     []domain.Turn
	character *domain.CharacterProfile
	scenario  *domain.ScenarioDefinition
}

// setupAck forces correct role alternation before the first real exchange:
// the upstream chat protocol requires the log to end on a user turn.
const setupAck = "Okay, I understand the setup. Let's begin."

func NewHistoryManager() *HistoryManager {
	return &HistoryManager{}
}

// Initialize resets the history and seeds it with the rendered system
// context followed by the synthetic acknowledgment turn.
func (h *HistoryManager) Initialize(character *domain.CharacterProfile, scenario *domain.ScenarioDefinition) {
	h.character = character
	h.scenario = scenario
	h.turns = []domain.Turn{
		{Role: domain.ContextRole, Text: RenderSystemContext(character, scenario)},
		{Role: domain.UserRole, Text: setupAck},
	}
}

// AppendUserTurn appends a user turn, rejecting it if it would sit adjacent
// to another user turn.
func (h *HistoryManager) AppendUserTurn(text string) error {
	return h.append(domain.Turn{Role: domain.UserRole, Text: text})
}

// AppendModelTurn appends a model turn, rejecting it if it would sit
// adjacent to another model turn.
func (h *HistoryManager) AppendModelTurn(text string) error {
	return h.append(domain.Turn{Role: domain.ModelRole, Text: text})
}

func (h *HistoryManager) append(turn domain.Turn) error {
	if n := len(h.turns); n > 0 && h.turns[n-1].Role == turn.Role {
		log.With(zap.String("role", string(turn.Role))).Error("same-role turns would become adjacent, rejecting append")
		return fmt.Errorf("%w: consecutive %s turns", domain.ErrProtocolAnomaly, turn.Role)
	}
	h.turns = append(h.turns, turn)
	return nil
}

// RemoveTrailingUserTurn drops the last turn when it is a user turn,
// undoing an append whose model reply never arrived. The log stays
// consistent for the next exchange.
func (h *HistoryManager) RemoveTrailingUserTurn() bool {
	if n := len(h.turns); n > 0 && h.turns[n-1].Role == domain.UserRole {
		h.turns = h.turns[:n-1]
		return true
	}
	return false
}

// UpdateInstructions carries a mid-session instruction change without
// mutating already-sent context: it appends a user-role directive telling
// the model to honor the new instructions silently.
func (h *HistoryManager) UpdateInstructions(instructions string) error {
	if h.scenario == nil {
		return fmt.Errorf("%w: history not initialized", domain.ErrProtocolAnomaly)
	}
	directive := "From this point on, silently honor these updated roleplay instructions without " +
		"acknowledging them in your reply:\n\n" + instructions
	h.scenario.RoleplayInstructions = instructions
	if err := h.AppendUserTurn(directive); err != nil {
		return err
	}
	return nil
}

// Reset clears the history. If a character and scenario are still held it
// re-initializes immediately, otherwise it leaves the log empty awaiting a
// fresh Initialize.
func (h *HistoryManager) Reset() {
	if h.character != nil && h.scenario != nil {
		h.Initialize(h.character, h.scenario)
		return
	}
	h.turns = nil
}

// Turns returns a copy of the current log.
func (h *HistoryManager) Turns() []domain.Turn {
	out := make([]domain.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *HistoryManager) Len() int {
	return len(h.turns)
}

// Export snapshots the log as an opaque ordered sequence.
func (h *HistoryManager) Export() []domain.Turn {
	return h.Turns()
}

// Import replaces the log with the given sequence. Every element must carry
// a valid role and non-empty text; otherwise the whole import is rejected
// and the current log is left untouched.
func (h *HistoryManager) Import(turns []domain.Turn) error {
	for i, t := range turns {
		switch t.Role {
		case domain.UserRole, domain.ModelRole:
		case domain.ContextRole:
			if i != 0 {
				log.With(zap.Int("index", i)).Error("context turn after position zero in import")
				return fmt.Errorf("%w: context turn at index %d", domain.ErrInvalidImport, i)
			}
		default:
			log.With(zap.String("role", string(t.Role)), zap.Int("index", i)).Error("invalid role in import")
			return fmt.Errorf("%w: invalid role %q at index %d", domain.ErrInvalidImport, t.Role, i)
		}
		if t.Text == "" {
			return fmt.Errorf("%w: empty text at index %d", domain.ErrInvalidImport, i)
		}
	}
	imported := make([]domain.Turn, len(turns))
	copy(imported, turns)
	h.turns = imported
	return nil
}
