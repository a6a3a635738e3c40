package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/internal/services"
	"github.com/hollowvale/companion-engine/internal/services/events"
	"github.com/hollowvale/companion-engine/internal/storage"
	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/combat"
	"github.com/hollowvale/companion-engine/pkg/dialogue"
	"github.com/hollowvale/companion-engine/pkg/prompts"
	"github.com/hollowvale/companion-engine/pkg/relationship"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/sentiment"
	"github.com/hollowvale/companion-engine/pkg/state"
	"github.com/hollowvale/companion-engine/pkg/textfilter"
	"github.com/hollowvale/companion-engine/pkg/worldclock"
)

const (
	// historyWindow bounds how much timeline is sent with a completion.
	historyWindow = 20
	// streamTimeout bounds one greeting stream end to end.
	streamTimeout = 60 * time.Second
)

// Options tunes a controller. Zero values fall back to package defaults.
type Options struct {
	WorldName     string
	Clock         worldclock.Config
	Sentiment     sentiment.Config
	FlushInterval time.Duration
}

// Controller drives one session's social runtime: NPC selection, bonding
// and dismissal, message ticks, and the combat handoff. All state changes
// funnel through it under one mutex; the greeting stream goroutine commits
// through the same lock.
type Controller struct {
	mu sync.Mutex

	st   *state.SessionState
	room *room.Room

	// targetCard is the fetched card of the conversing NPC. Cleared with
	// the conversing reference; never persisted.
	targetCard *card.CharacterCard

	rels      *relationship.Store
	tracker   *sentiment.Tracker
	splitter  *dialogue.Splitter
	promptCtx prompts.Context

	store  storage.Storage
	llm    services.LLMService // nil when no endpoint is configured
	events *events.Broadcaster // nil when eventing is disabled

	opts   Options
	logger *slog.Logger
}

// NewController wires a controller around loaded session state. The llm
// and broadcaster may be nil; every path degrades rather than failing.
func NewController(st *state.SessionState, rm *room.Room, store storage.Storage, llm services.LLMService, bc *events.Broadcaster, opts Options, logger *slog.Logger) *Controller {
	c := &Controller{
		st:       st,
		room:     rm,
		rels:     relationship.FromMap(st.Relationships),
		tracker:  sentiment.NewTracker(opts.Sentiment, logger),
		splitter: dialogue.NewSplitter(),
		store:    store,
		llm:      llm,
		events:   bc,
		opts:     opts,
		logger:   logger,
	}
	c.recompose()
	return c
}

// Hydrate refetches the conversing NPC's card after a session reload. A
// stale target that can no longer be resolved is cleared rather than
// surfaced as an error.
func (c *Controller) Hydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.InConversation() || c.targetCard != nil {
		return
	}
	n, ok := c.room.FindNPC(c.st.ConversingID)
	if !ok {
		c.clearConversing()
		return
	}
	cd, err := c.store.GetCard(ctx, cardIDFor(n))
	if err != nil {
		c.logger.Warn("Dropping stale conversation target", "npc_id", n.ID, "error", err)
		c.clearConversing()
		return
	}
	c.targetCard = cd
	c.recompose()
}

// State returns the underlying session state. Callers snapshot before
// persisting; see Snapshot.
func (c *Controller) State() *state.SessionState {
	return c.st
}

// PromptContext returns the currently composed prompt context.
func (c *Controller) PromptContext() prompts.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptCtx
}

// Snapshot syncs the working relationship store back into the session
// state and stamps it, ready for persistence.
func (c *Controller) Snapshot() *state.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Relationships = c.rels.All()
	c.st.UpdatedAt = time.Now()
	return c.st
}

// SelectNPC handles a click on a roster NPC. A hostile NPC produces a
// combat handoff payload; a social NPC becomes the conversation target and
// a greeting is streamed into the timeline. Selecting the current target
// or the bonded ally again is a no-op. Unknown ids are the only hard
// error.
func (c *Controller) SelectNPC(ctx context.Context, npcID string) (*combat.InitData, []chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.room.FindNPC(npcID)
	if !ok {
		return nil, nil, fmt.Errorf("npc %s is not in room %s", npcID, c.room.ID)
	}

	if n.IsHostile() {
		return c.beginCombat(ctx, n)
	}

	// Selecting either active reference again is a no-op. The bonded ally
	// in particular must never also become the conversation target.
	if c.st.ConversingID == n.ID || c.st.BondedID == n.ID {
		return nil, nil, nil
	}

	// Switching targets replaces the previous one outright.
	c.clearConversing()
	c.st.ConversingID = n.ID
	c.st.ConversingName = n.Name

	cd, err := c.store.GetCard(ctx, cardIDFor(n))
	if err != nil {
		c.logger.Warn("Card fetch failed, degrading to flavor line", "npc_id", n.ID, "error", err)
		c.clearConversing()
		msg := c.appendNarration(ctx, chat.TypeNarration, fallbackApproach(n.Name))
		return nil, []chat.Message{msg}, nil
	}
	c.targetCard = cd
	c.rels.GetOrCreate(n.ID)
	c.recompose()

	if c.llm == nil {
		// No endpoint configured. Emit the static line and clear the
		// target so a later click retries cleanly.
		c.clearConversing()
		msg := c.appendNarration(ctx, chat.TypeNarration, fallbackApproach(n.Name))
		return nil, []chat.Message{msg}, nil
	}

	return nil, []chat.Message{c.beginGreeting(n, cd)}, nil
}

// BondNPC promotes the current conversation target to the bonded ally. At
// most one ally is bonded; attempting to bond over an existing ally is
// refused with a notice naming them and no state change.
func (c *Controller) BondNPC(ctx context.Context) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.InConversation() {
		return nil, fmt.Errorf("no conversation target to bond")
	}

	if c.st.HasBondedAlly() {
		msg := c.appendNarration(ctx, chat.TypeNarration,
			fmt.Sprintf("*You already travel with %s. Part ways with them first.*", c.st.BondedName))
		return []chat.Message{msg}, nil
	}

	cd := c.targetCard
	if cd == nil {
		var err error
		n, _ := c.room.FindNPC(c.st.ConversingID)
		cd, err = c.store.GetCard(ctx, cardIDFor(n))
		if err != nil {
			c.logger.Warn("Bond card fetch failed", "npc_id", c.st.ConversingID, "error", err)
			msg := c.appendNarration(ctx, chat.TypeNarration,
				fmt.Sprintf("*%s hesitates, not yet ready to join you.*", c.st.ConversingName))
			return []chat.Message{msg}, nil
		}
	}

	c.st.BondedID = c.st.ConversingID
	c.st.BondedName = c.st.ConversingName
	c.st.BondedCard = cd
	c.clearConversing()
	c.recompose()

	msg := c.appendNarration(ctx, chat.TypeNarration,
		fmt.Sprintf("*%s joins you as your companion.*", c.st.BondedName))
	msg = c.tagMessage(msg, chat.MetaNPCID, c.st.BondedID)
	c.publishAllyChanged(ctx, c.st.BondedID)
	return []chat.Message{msg}, nil
}

// DismissAlly releases the bonded ally. The NPC stays wherever the roster
// places it; only the bond is dropped. Dismissing with no ally is a no-op.
func (c *Controller) DismissAlly(ctx context.Context) []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.HasBondedAlly() {
		return nil
	}

	name := c.st.BondedName
	c.st.BondedID = ""
	c.st.BondedName = ""
	c.st.BondedCard = nil
	c.recompose()

	msg := c.appendNarration(ctx, chat.TypeNarration,
		fmt.Sprintf("*%s stays behind, raising a hand in farewell.*", name))
	c.publishAllyChanged(ctx, "")
	return []chat.Message{msg}
}

// ClearConversingTarget drops the transient conversation target, e.g. when
// the player walks away mid-conversation.
func (c *Controller) ClearConversingTarget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearConversing()
	c.recompose()
}

// HandleMessage runs one player-message tick: append, advance the clock,
// run sentiment, generate the reply, and split dual-speaker output.
// Returns every message this tick appended.
func (c *Controller) HandleMessage(ctx context.Context, text string, valence *float64) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userMsg := chat.NewMessage(chat.ChatRoleUser, text)
	c.st.Append(userMsg)
	c.publishAppended(ctx, userMsg)

	appended := []chat.Message{userMsg}
	appended = append(appended, c.tick(ctx, signalFrom(valence))...)

	reply, ok := c.generateReply(ctx)
	if ok {
		appended = append(appended, reply...)
	}

	c.st.UpdatedAt = time.Now()
	return appended, nil
}

// beginCombat builds the handoff payload for the selected hostile. The
// bonded ally fights alongside the player unless the ally is the selected
// enemy itself.
func (c *Controller) beginCombat(ctx context.Context, n room.NPC) (*combat.InitData, []chat.Message, error) {
	h := combat.Handoff{
		Selected: n,
		Room:     *c.room,
		Player:   c.st.Player,
	}
	if c.st.HasBondedAlly() && c.st.BondedID != n.ID {
		h.Ally = c.st.BondedCard
		h.AllyID = c.st.BondedID
	}

	init, msg, err := combat.Build(h)
	if err != nil {
		return nil, nil, fmt.Errorf("combat handoff failed: %w", err)
	}

	c.clearConversing()
	c.recompose()
	c.st.Append(msg)
	c.publishAppended(ctx, msg)
	if c.events != nil {
		if perr := c.events.PublishCombatStarted(ctx, c.st.ID, n.ID); perr != nil {
			c.logger.Warn("Failed to publish combat event", "error", perr)
		}
	}
	return init, []chat.Message{msg}, nil
}

// beginGreeting appends a streaming placeholder and spawns the consumer
// goroutine. The placeholder id is captured before the goroutine starts so
// commits target the right timeline slot even if the player keeps acting.
func (c *Controller) beginGreeting(n room.NPC, cd *card.CharacterCard) chat.Message {
	placeholder := chat.NewStreamingMessage(chat.ChatRoleAssistant)
	placeholder = placeholder.WithMeta(chat.MetaType, chat.TypeGreeting)
	placeholder = placeholder.WithMeta(chat.MetaSpeakerName, n.Name)
	placeholder = placeholder.WithMeta(chat.MetaNPCID, n.ID)
	c.st.Append(placeholder)

	req := services.GreetingRequest{
		SystemPrompt:  c.promptCtx.SystemPrompt,
		CharacterName: n.Name,
		FirstMessage:  cd.FirstMessage,
	}

	// The stream outlives the triggering request.
	streamCtx, cancel := context.WithTimeout(context.Background(), streamTimeout)

	ch, err := c.llm.StreamGreeting(streamCtx, req)
	if err != nil {
		cancel()
		c.logger.Warn("Greeting request failed, degrading to flavor line", "npc_id", n.ID, "error", err)
		c.finalizeLocked(placeholder.ID, n, err)
		_, m := c.st.Message(placeholder.ID)
		return *m
	}

	go c.consumeGreeting(streamCtx, cancel, ch, placeholder.ID, n)
	return placeholder
}

func (c *Controller) consumeGreeting(ctx context.Context, cancel context.CancelFunc, ch <-chan services.StreamChunk, id uuid.UUID, n room.NPC) {
	defer cancel()

	buf := newStreamBuffer(c.opts.FlushInterval, func(s string) {
		c.commitChunk(ctx, id, s)
	})

	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Done {
			break
		}
		if chunk.Content != "" {
			buf.Append(chunk.Content)
		}
	}
	buf.Flush()

	c.mu.Lock()
	c.finalizeLocked(id, n, streamErr)
	c.mu.Unlock()
}

// commitChunk appends streamed content to the placeholder under the lock.
func (c *Controller) commitChunk(ctx context.Context, id uuid.UUID, content string) {
	c.mu.Lock()
	committed := false
	if _, m := c.st.Message(id); m != nil && m.Status == chat.StatusStreaming {
		m.Content += content
		committed = true
	}
	c.mu.Unlock()

	if committed && c.events != nil {
		if err := c.events.PublishChatChunk(ctx, c.st.ID, id, content); err != nil {
			c.logger.Warn("Failed to publish chunk event", "error", err)
		}
	}
}

// finalizeLocked completes the greeting message: clean up the streamed
// text, keep a broken stream's partial output with a closing beat, fall
// back to a flavor line when nothing usable arrived, then run the tick and
// splitter passes the finished message owes. Caller holds the lock.
func (c *Controller) finalizeLocked(id uuid.UUID, n room.NPC, streamErr error) {
	idx, m := c.st.Message(id)
	if m == nil || m.Status != chat.StatusStreaming {
		return
	}

	if streamErr != nil {
		c.logger.Warn("Greeting stream failed", "npc_id", n.ID, "error", streamErr)
	}

	m.Content = textfilter.FinalizeStreamed(m.Content)
	switch {
	case streamErr != nil && m.Content != "":
		// Keep what arrived and close the dangling line.
		m.Content += fmt.Sprintf(" *%s falls silent mid-thought.*", n.Name)
	case m.Content == "":
		m.Content = fallbackApproach(n.Name)
		m.Role = chat.ChatRoleSystem
		m.Metadata[chat.MetaType] = chat.TypeNarration
	}
	m.Status = chat.StatusComplete

	ctx := context.Background()
	c.publishAppended(ctx, *m)
	if m.IsQualifying() {
		c.tick(ctx, nil)
		c.splitAt(ctx, idx)
	}
}

// generateReply produces the NPC response for the current shape. Without
// an endpoint or an active speaker there is nothing to say. Failures
// degrade to a narrated lapse instead of an error.
func (c *Controller) generateReply(ctx context.Context) ([]chat.Message, bool) {
	if c.llm == nil {
		return nil, false
	}
	speaker, speakerID := c.activeSpeaker()
	if speaker == "" {
		return nil, false
	}

	out, err := c.llm.Generate(ctx, c.completionMessages())
	if err != nil {
		c.logger.Warn("Reply generation failed, degrading to flavor line", "error", err)
		msg := c.appendNarration(ctx, chat.TypeNarration, "*The conversation lapses into silence.*")
		return []chat.Message{msg}, true
	}

	reply := chat.NewMessage(chat.ChatRoleAssistant, textfilter.FinalizeStreamed(out))
	reply = reply.WithMeta(chat.MetaSpeakerName, speaker)
	reply = reply.WithMeta(chat.MetaNPCID, speakerID)
	c.st.Append(reply)
	c.publishAppended(ctx, reply)

	notices := c.tick(ctx, nil)

	replyMsgs := []chat.Message{reply}
	if idx, _ := c.st.Message(reply.ID); idx >= 0 {
		if split, ok := c.splitAt(ctx, idx); ok {
			replyMsgs = split
		}
	}
	return append(replyMsgs, notices...), true
}

// tick advances the clock for one qualifying message and runs the
// sentiment pass for the active NPC. Returns any notices it appended.
func (c *Controller) tick(ctx context.Context, sig *sentiment.Signal) []chat.Message {
	var appended []chat.Message

	clock, newDay := worldclock.Advance(c.st.Clock, c.opts.Clock, time.Now())
	c.st.Clock = clock
	if newDay {
		c.rels.ResetDaily(clock.CurrentDay)
		day := chat.Narration(chat.TypeDayTransition,
			fmt.Sprintf("*Dawn breaks over %s. Day %d begins.*", c.worldName(), clock.CurrentDay))
		c.st.Append(day)
		c.publishAppended(ctx, day)
		appended = append(appended, day)
		if c.events != nil {
			if err := c.events.PublishDayStarted(ctx, c.st.ID, clock.CurrentDay); err != nil {
				c.logger.Warn("Failed to publish day event", "error", err)
			}
		}
	}

	name, id := c.activeSpeaker()
	if id != "" {
		if notice, ok := c.tracker.Observe(c.rels, id, name, sig, clock.CurrentDay); ok {
			c.st.Append(notice)
			c.publishAppended(ctx, notice)
			appended = append(appended, notice)
		}
	}

	c.st.Relationships = c.rels.All()
	c.recompose()
	return appended
}

// splitAt runs the dual-speaker pass over the timeline slot.
func (c *Controller) splitAt(ctx context.Context, idx int) ([]chat.Message, bool) {
	if idx < 0 || len(c.promptCtx.SpeakerNames) < 2 {
		return nil, false
	}
	msg := c.st.Timeline[idx]
	out, ok := c.splitter.Split(msg, c.promptCtx.SpeakerNames...)
	if !ok {
		return nil, false
	}
	c.st.ReplaceAt(idx, out)
	for _, m := range out {
		c.publishAppended(ctx, m)
	}
	return out, true
}

// activeSpeaker returns the NPC whose voice leads: the conversation target
// when present, otherwise the bonded ally.
func (c *Controller) activeSpeaker() (name, id string) {
	if c.st.InConversation() {
		return c.st.ConversingName, c.st.ConversingID
	}
	if c.st.HasBondedAlly() {
		return c.st.BondedName, c.st.BondedID
	}
	return "", ""
}

// recompose rebuilds the prompt context from current references. Called
// after every state change that feeds composition.
func (c *Controller) recompose() {
	b := prompts.New().
		WithWorldName(c.worldName()).
		WithRoom(c.room).
		WithClock(&c.st.Clock)

	if c.st.HasBondedAlly() && c.st.BondedCard != nil {
		b.WithAllyCard(c.st.BondedCard)
	}
	if c.st.InConversation() && c.targetCard != nil {
		b.WithTargetCard(c.targetCard)
	}
	if _, id := c.activeSpeaker(); id != "" {
		if rel, ok := c.rels.Get(id); ok {
			b.WithRelationship(&rel)
		}
	}
	c.promptCtx = b.Build()
}

// completionMessages assembles the system prompt plus a bounded window of
// recent dialogue.
func (c *Controller) completionMessages() []chat.CompletionMessage {
	out := []chat.CompletionMessage{{Role: chat.ChatRoleSystem, Content: c.promptCtx.SystemPrompt}}

	var window []chat.CompletionMessage
	for i := len(c.st.Timeline) - 1; i >= 0 && len(window) < historyWindow; i-- {
		m := c.st.Timeline[i]
		if !m.IsQualifying() || m.Status != chat.StatusComplete {
			continue
		}
		window = append(window, chat.CompletionMessage{Role: m.Role, Content: m.Content})
	}
	for i := len(window) - 1; i >= 0; i-- {
		out = append(out, window[i])
	}
	return out
}

func (c *Controller) appendNarration(ctx context.Context, msgType, content string) chat.Message {
	msg := chat.Narration(msgType, content)
	c.st.Append(msg)
	c.publishAppended(ctx, msg)
	return msg
}

// tagMessage adds metadata to an already-appended timeline message and
// returns the updated copy.
func (c *Controller) tagMessage(msg chat.Message, key, value string) chat.Message {
	_, m := c.st.Message(msg.ID)
	if m == nil {
		return msg
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
	return *m
}

func (c *Controller) clearConversing() {
	c.st.ConversingID = ""
	c.st.ConversingName = ""
	c.targetCard = nil
}

func (c *Controller) worldName() string {
	if c.opts.WorldName != "" {
		return c.opts.WorldName
	}
	return "the world"
}

func (c *Controller) publishAppended(ctx context.Context, msg chat.Message) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishMessageAppended(ctx, c.st.ID, msg); err != nil {
		c.logger.Warn("Failed to publish message event", "error", err)
	}
}

func (c *Controller) publishAllyChanged(ctx context.Context, allyID string) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishAllyChanged(ctx, c.st.ID, allyID); err != nil {
		c.logger.Warn("Failed to publish ally event", "error", err)
	}
}

func cardIDFor(n room.NPC) string {
	if n.CardID != "" {
		return n.CardID
	}
	return n.ID
}

func fallbackApproach(name string) string {
	return fmt.Sprintf("*You approach %s. They give you a measuring look, but say nothing.*", name)
}

func signalFrom(valence *float64) *sentiment.Signal {
	if valence == nil {
		return nil
	}
	return &sentiment.Signal{Valence: *valence}
}
