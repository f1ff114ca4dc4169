// Package game runs the liar's dice tables. The engine owns all game
// state transitions and talks to connected players exclusively through
// each game's connection registry.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"dicelink/internal/connection"
	"dicelink/internal/domain"
	"dicelink/internal/hub"
	"dicelink/internal/pubsub"
	"dicelink/internal/rules"
	"dicelink/internal/storage"
	"dicelink/internal/websocket"
)

// table is the live state of one running game. All mutation goes
// through its mutex, which also serializes outbound sends so that each
// player sees events in the order the engine produced them.
type table struct {
	mu   sync.Mutex
	game *domain.Game
	bid  *domain.Bid
	turn int // index into game.Players
	log  []storage.Entry
}

// Dependencies carries everything the engine needs. Repo and transcript
// store may be nil in tests that only exercise the in-memory game flow.
type Dependencies struct {
	Hub         *hub.Hub
	Rules       *rules.Engine
	Games       domain.GameRepository
	Transcripts *storage.TranscriptStore
	Subscriber  pubsub.Subscriber
}

// Engine hosts every active table.
type Engine struct {
	hub         *hub.Hub
	rules       *rules.Engine
	games       domain.GameRepository
	transcripts *storage.TranscriptStore
	subscriber  pubsub.Subscriber
	logger      *slog.Logger

	mu     sync.Mutex
	tables map[uuid.UUID]*table

	// rollDie is swapped out in tests for deterministic hands.
	rollDie func() int
}

// NewEngine creates an engine with no active tables.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		hub:         deps.Hub,
		rules:       deps.Rules,
		games:       deps.Games,
		transcripts: deps.Transcripts,
		subscriber:  deps.Subscriber,
		logger:      slog.Default().With("component", "game.engine"),
		tables:      make(map[uuid.UUID]*table),
		rollDie:     func() int { return rand.Intn(domain.DiceFaces) + 1 },
	}
}

// Start subscribes the engine to the bus topics the transport publishes
// on. It returns once the subscriptions are active.
func (e *Engine) Start(ctx context.Context) error {
	if e.subscriber == nil {
		return nil
	}

	if err := e.subscriber.Subscribe(ctx, websocket.TopicGameAction, e.handleAction); err != nil {
		return fmt.Errorf("subscribing to %s: %w", websocket.TopicGameAction, err)
	}
	if err := e.subscriber.Subscribe(ctx, websocket.TopicClientConnected, e.handleConnected); err != nil {
		return fmt.Errorf("subscribing to %s: %w", websocket.TopicClientConnected, err)
	}
	if err := e.subscriber.Subscribe(ctx, websocket.TopicClientDisconnected, e.handleDisconnected); err != nil {
		return fmt.Errorf("subscribing to %s: %w", websocket.TopicClientDisconnected, err)
	}
	return nil
}

// CreateGame opens a new lobby.
func (e *Engine) CreateGame(ctx context.Context) (*domain.Game, error) {
	g := &domain.Game{
		ID:        uuid.New(),
		Status:    domain.StatusLobby,
		CreatedAt: time.Now().UTC(),
	}

	if e.games != nil {
		if err := e.games.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("persisting new game: %w", err)
		}
	}

	e.mu.Lock()
	e.tables[g.ID] = &table{game: g}
	e.mu.Unlock()

	e.logger.Info("Game created", "gameID", g.ID)
	return g, nil
}

// Join seats a player at a lobby table. Joining is an HTTP-level action
// that precedes the WebSocket connection.
func (e *Engine) Join(ctx context.Context, gameID uuid.UUID, player *domain.Player) error {
	t, err := e.table(gameID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.game.Status != domain.StatusLobby {
		return domain.ErrGameStarted
	}
	if len(t.game.Players) >= domain.MaxPlayers {
		return domain.ErrGameFull
	}
	for _, pd := range t.game.Players {
		if pd.PlayerID == player.ID {
			// Rejoining the lobby is a no-op.
			return nil
		}
	}

	t.game.Players = append(t.game.Players, domain.PlayerData{
		PlayerID: player.ID,
		Name:     player.Name,
	})
	e.persist(ctx, t.game)

	e.announce(ctx, t, PlayerJoinedEvent{
		Type: EventPlayerJoined,
		Player: PlayerSummary{
			PlayerID: player.ID,
			Name:     player.Name,
		},
	})
	return nil
}

// handleConnected greets a freshly connected player with the current
// table state.
func (e *Engine) handleConnected(ctx context.Context, msg pubsub.Message) error {
	gameID, playerID, err := parseIdentity(msg)
	if err != nil {
		return err
	}

	t, err := e.table(gameID)
	if err != nil {
		e.logger.Warn("Connect for unknown game", "gameID", gameID, "playerID", playerID)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	reg := e.hub.Registry(gameID)
	evt := LobbyEvent{Type: EventLobby, GameID: gameID, Players: summarize(t.game.Players)}
	if err := reg.Send(ctx, playerID, evt); err != nil {
		// The player may already be gone again; nothing to clean up here,
		// the transport reports its own disconnects.
		e.logger.Warn("Failed to greet player", "gameID", gameID, "playerID", playerID, "error", err)
	}
	return nil
}

// handleDisconnected reacts to a transport-reported drop. The bridge has
// already unregistered the channel; the engine only updates game state.
func (e *Engine) handleDisconnected(ctx context.Context, msg pubsub.Message) error {
	gameID, playerID, err := parseIdentity(msg)
	if err != nil {
		return err
	}

	t, err := e.table(gameID)
	if err != nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.game.Status != domain.StatusLobby {
		// Mid-game drops keep their seat; their dice stay in play and
		// their turns are forfeited to the challenge mechanism.
		return nil
	}

	for i, pd := range t.game.Players {
		if pd.PlayerID == playerID {
			t.game.Players = append(t.game.Players[:i], t.game.Players[i+1:]...)
			e.persist(ctx, t.game)
			e.announce(ctx, t, PlayerLeftEvent{Type: EventPlayerLeft, PlayerID: playerID})
			break
		}
	}
	return nil
}

// handleAction dispatches a validated client action.
func (e *Engine) handleAction(ctx context.Context, msg pubsub.Message) error {
	gameID, playerID, err := parseIdentity(msg)
	if err != nil {
		return err
	}

	var action Action
	if err := json.Unmarshal(msg.Payload, &action); err != nil {
		e.rejectAction(ctx, gameID, playerID, "malformed action")
		return nil
	}
	if err := action.Validate(); err != nil {
		e.rejectAction(ctx, gameID, playerID, "invalid action")
		return nil
	}

	t, tErr := e.table(gameID)
	if tErr != nil {
		e.rejectAction(ctx, gameID, playerID, "unknown game")
		return nil
	}

	switch action.Action {
	case ActionReady:
		err = e.ready(ctx, t, playerID)
	case ActionBid:
		err = e.placeBid(ctx, t, domain.Bid{PlayerID: playerID, Quantity: action.Quantity, Face: action.Face})
	case ActionChallenge:
		err = e.challenge(ctx, t, playerID)
	}

	if err != nil {
		e.rejectAction(ctx, gameID, playerID, err.Error())
	}
	return nil
}

// ready marks a player ready; when the whole lobby is, the first round
// begins.
func (e *Engine) ready(ctx context.Context, t *table, playerID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.game.Status != domain.StatusLobby {
		return domain.ErrGameStarted
	}

	found := false
	allReady := true
	for i := range t.game.Players {
		if t.game.Players[i].PlayerID == playerID {
			t.game.Players[i].Ready = true
			found = true
		}
		allReady = allReady && t.game.Players[i].Ready
	}
	if !found {
		return domain.ErrPlayerNotFound
	}

	if !allReady || len(t.game.Players) < 2 {
		e.announce(ctx, t, LobbyEvent{Type: EventLobby, GameID: t.game.ID, Players: summarize(t.game.Players)})
		return nil
	}

	t.game.Status = domain.StatusPlaying
	for i := range t.game.Players {
		t.game.Players[i].Dice = make([]int, domain.StartingDice)
	}
	e.startRound(ctx, t)
	return nil
}

// startRound rolls every surviving hand and deals the results: each
// player privately receives their own dice, everyone publicly sees the
// dice counts and whose turn it is.
func (e *Engine) startRound(ctx context.Context, t *table) {
	t.game.Round++
	t.bid = nil

	for i := range t.game.Players {
		pd := &t.game.Players[i]
		for j := range pd.Dice {
			pd.Dice[j] = e.rollDie()
		}
	}
	e.persist(ctx, t.game)

	// Turn stays with the previous round's loser, wrapping past
	// eliminated players.
	t.turn = t.turn % len(t.game.Players)
	for t.game.Players[t.turn].DiceLeft() == 0 {
		t.turn = (t.turn + 1) % len(t.game.Players)
	}
	turnID := t.game.Players[t.turn].PlayerID

	e.announce(ctx, t, RoundStartedEvent{
		Type:    EventRoundStarted,
		Round:   t.game.Round,
		Players: summarize(t.game.Players),
		Turn:    turnID,
	})

	reg := e.hub.Registry(t.game.ID)
	recipients := make(map[uuid.UUID]domain.PlayerData, len(t.game.Players))
	for _, pd := range t.game.Players {
		recipients[pd.PlayerID] = pd
	}
	round := t.game.Round
	err := connection.PersonalizedBroadcast(ctx, reg, func(pd domain.PlayerData) any {
		return HandEvent{Type: EventYourHand, Round: round, Dice: pd.Dice, Turn: turnID}
	}, recipients)
	e.reportFanOut(ctx, t.game.ID, err)
}

// placeBid validates and announces a bid, then passes the turn.
func (e *Engine) placeBid(ctx context.Context, t *table, bid domain.Bid) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.game.Status != domain.StatusPlaying {
		return domain.ErrGameStarted
	}
	if t.game.Players[t.turn].PlayerID != bid.PlayerID {
		return domain.ErrNotYourTurn
	}
	if err := bid.Validate(); err != nil {
		return domain.ErrInvalidBid
	}
	if t.bid != nil && !e.rules.ValidRaise(*t.bid, bid) {
		return domain.ErrInvalidBid
	}

	t.bid = &bid
	e.advanceTurn(t)

	e.announce(ctx, t, BidPlacedEvent{
		Type: EventBidPlaced,
		Bid:  bid,
		Turn: t.game.Players[t.turn].PlayerID,
	})
	return nil
}

// challenge resolves a liar call: all hands are revealed, the wrong
// party forfeits a die, and either the next round starts or the game
// ends.
func (e *Engine) challenge(ctx context.Context, t *table, challengerID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.game.Status != domain.StatusPlaying {
		return domain.ErrGameStarted
	}
	if t.bid == nil {
		return domain.ErrNoCurrentBid
	}
	if t.game.Players[t.turn].PlayerID != challengerID {
		return domain.ErrNotYourTurn
	}

	hands := make([][]int, 0, len(t.game.Players))
	revealed := make([]RevealedHand, 0, len(t.game.Players))
	for _, pd := range t.game.Players {
		if pd.DiceLeft() == 0 {
			continue
		}
		hands = append(hands, pd.Dice)
		revealed = append(revealed, RevealedHand{PlayerID: pd.PlayerID, Name: pd.Name, Dice: pd.Dice})
	}

	actual := e.rules.CountMatching(hands, t.bid.Face)
	loserID := t.bid.PlayerID // bid was a lie
	if actual >= t.bid.Quantity {
		loserID = challengerID // bid held up
	}

	e.announce(ctx, t, ChallengeResultEvent{
		Type:       EventChallengeResult,
		Challenger: challengerID,
		Bid:        *t.bid,
		Actual:     actual,
		Loser:      loserID,
		Hands:      revealed,
	})

	for i := range t.game.Players {
		pd := &t.game.Players[i]
		if pd.PlayerID != loserID {
			continue
		}
		pd.Dice = pd.Dice[:pd.DiceLeft()-1]
		if pd.DiceLeft() == 0 {
			e.announce(ctx, t, PlayerEliminatedEvent{Type: EventPlayerOut, PlayerID: loserID})
		}
		t.turn = i // the loser (or their successor) opens the next round
		break
	}

	if winner, over := e.winner(t); over {
		e.finish(ctx, t, winner)
		return nil
	}

	e.startRound(ctx, t)
	return nil
}

// winner reports the last player holding dice, if only one remains.
func (e *Engine) winner(t *table) (uuid.UUID, bool) {
	var (
		last  uuid.UUID
		alive int
	)
	for _, pd := range t.game.Players {
		if pd.DiceLeft() > 0 {
			last = pd.PlayerID
			alive++
		}
	}
	return last, alive == 1
}

// finish closes the game: persists the result, archives the transcript,
// tells everyone, and tears the registry down.
func (e *Engine) finish(ctx context.Context, t *table, winnerID uuid.UUID) {
	now := time.Now().UTC()
	t.game.Status = domain.StatusFinished
	t.game.WinnerID = &winnerID
	t.game.FinishedAt = &now
	e.persist(ctx, t.game)

	e.announce(ctx, t, GameOverEvent{Type: EventGameOver, WinnerID: winnerID})

	if e.transcripts != nil {
		transcript := storage.Transcript{
			GameID:     t.game.ID,
			FinishedAt: now,
			WinnerID:   &winnerID,
			Entries:    t.log,
		}
		if err := e.transcripts.Save(ctx, transcript); err != nil {
			e.logger.Error("Failed to archive transcript", "gameID", t.game.ID, "error", err)
		}
	}

	reg := e.hub.Registry(t.game.ID)
	for _, pd := range t.game.Players {
		if err := reg.Disconnect(ctx, pd.PlayerID); err != nil && !errors.Is(err, connection.ErrNotConnected) {
			e.logger.Warn("Failed to close connection at game end", "gameID", t.game.ID, "playerID", pd.PlayerID, "error", err)
		}
	}
	e.hub.Drop(t.game.ID)

	e.mu.Lock()
	delete(e.tables, t.game.ID)
	e.mu.Unlock()

	e.logger.Info("Game finished", "gameID", t.game.ID, "winnerID", winnerID, "rounds", t.game.Round)
}

// announce broadcasts an event to the whole table and records it in the
// transcript log. Failed recipients are disconnected, per the fan-out
// failure contract.
func (e *Engine) announce(ctx context.Context, t *table, event any) {
	if payload, err := json.Marshal(event); err == nil {
		kind := ""
		var typed struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(payload, &typed) == nil {
			kind = typed.Type
		}
		t.log = append(t.log, storage.Entry{At: time.Now().UTC(), Kind: kind, Payload: payload})
	}

	reg := e.hub.Registry(t.game.ID)
	err := reg.Broadcast(ctx, event)
	e.reportFanOut(ctx, t.game.ID, err)
}

// reportFanOut handles a fan-out result: a transport failure on some
// recipient means that connection is beyond saving, so it gets
// disconnected explicitly.
func (e *Engine) reportFanOut(ctx context.Context, gameID uuid.UUID, err error) {
	if err == nil {
		return
	}

	reg := e.hub.Registry(gameID)
	for _, id := range connection.FailedIdentities(err) {
		e.logger.Warn("Dropping player after failed delivery", "gameID", gameID, "playerID", id)
		if dErr := reg.Disconnect(ctx, id); dErr != nil && !errors.Is(dErr, connection.ErrNotConnected) {
			e.logger.Warn("Disconnect after failed delivery also failed", "gameID", gameID, "playerID", id, "error", dErr)
		}
	}
}

// rejectAction tells one player their action was refused. Best effort:
// the player may already be gone.
func (e *Engine) rejectAction(ctx context.Context, gameID, playerID uuid.UUID, reason string) {
	reg, ok := e.hub.Peek(gameID)
	if !ok {
		return
	}
	if err := reg.Send(ctx, playerID, ErrorEvent{Type: EventError, Reason: reason}); err != nil {
		e.logger.Debug("Failed to deliver rejection", "gameID", gameID, "playerID", playerID, "error", err)
	}
}

func (e *Engine) advanceTurn(t *table) {
	for {
		t.turn = (t.turn + 1) % len(t.game.Players)
		if t.game.Players[t.turn].DiceLeft() > 0 {
			return
		}
	}
}

func (e *Engine) table(gameID uuid.UUID) (*table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return t, nil
}

func (e *Engine) persist(ctx context.Context, g *domain.Game) {
	if e.games == nil {
		return
	}
	if err := e.games.Update(ctx, g); err != nil {
		e.logger.Error("Failed to persist game", "gameID", g.ID, "error", err)
	}
}

func parseIdentity(msg pubsub.Message) (gameID, playerID uuid.UUID, err error) {
	gameID, err = uuid.Parse(msg.GameID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("bad game id %q: %w", msg.GameID, err)
	}
	playerID, err = uuid.Parse(msg.PlayerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("bad player id %q: %w", msg.PlayerID, err)
	}
	return gameID, playerID, nil
}
