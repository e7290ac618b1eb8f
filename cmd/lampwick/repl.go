package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/lampwick/pkg/chat"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/events"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/go-go-golems/lampwick/pkg/persist"
)

// chatTopic is the event topic connecting the turn controller to the
// console renderer.
const chatTopic = "chat"

// app is the interactive session state: the wired controller plus the
// conversation currently receiving input.
type app struct {
	ctrl      *chat.Controller
	store     *conversation.Store
	memory    *conversation.MemoryStore
	recents   *conversation.RecentAttachments
	accounts  *persist.Accounts
	persister *persist.Persister
	tr        i18n.Translator

	currentID  string
	attachment *conversation.TextAttachment

	mu       sync.Mutex
	lastStep string
}

func newApp(
	ctrl *chat.Controller,
	store *conversation.Store,
	memory *conversation.MemoryStore,
	accounts *persist.Accounts,
	persister *persist.Persister,
	tr i18n.Translator,
) *app {
	return &app{
		ctrl:      ctrl,
		store:     store,
		memory:    memory,
		recents:   conversation.NewRecentAttachments(),
		accounts:  accounts,
		persister: persister,
		tr:        tr,
	}
}

// reload replaces the in-memory state with the active namespace's snapshot.
// Called on startup and after every identity change.
func (a *app) reload() {
	snap, err := a.persister.Load(a.accounts.Namespace())
	if err != nil {
		if errors.Is(err, persist.ErrCorrupted) {
			fmt.Println("stored data was corrupted; starting fresh (a backup was kept)")
		} else {
			log.Warn().Err(err).Msg("failed to load state")
		}
	}
	if snap == nil {
		snap = &persist.Snapshot{}
	}
	a.store.Replace(snap.Conversations)
	a.memory.ReplaceFacts(snap.MemoryFacts)
	a.memory.ReplaceGoals(snap.CoachGoals)
	a.recents.Replace(snap.RecentAttachments)

	a.currentID = ""
	if sorted := a.store.Sorted(); len(sorted) > 0 {
		a.currentID = sorted[0].ID
	}
}

// save writes the current state under the active namespace. Wired as the
// change hook of every store, so it runs after each committed mutation.
func (a *app) save() {
	snap := &persist.Snapshot{
		Conversations:     a.store.List(),
		MemoryFacts:       a.memory.Facts(),
		CoachGoals:        a.memory.Goals(),
		RecentAttachments: a.recents.List(),
	}
	if err := a.persister.Save(a.accounts.Namespace(), snap); err != nil {
		log.Warn().Err(err).Msg("failed to save state")
	}
}

func (a *app) loop(ctx context.Context) error {
	fmt.Printf("lampwick v%s — /help for commands\n", version)
	a.printIdentity()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line); quit {
				return nil
			}
			continue
		}
		a.send(ctx, line)
	}
}

// command dispatches a slash command. Returns true when the session should
// end.
func (a *app) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		a.printHelp()
	case "/new":
		conv := conversation.New(rest, conversation.ModelFast)
		a.store.Add(conv)
		a.currentID = conv.ID
		fmt.Println("started a new conversation")
	case "/list":
		a.printConversations()
	case "/switch":
		a.switchConversation(args)
	case "/rename":
		if rest == "" {
			fmt.Println("usage: /rename <title>")
			break
		}
		if err := a.store.Rename(a.ensureConversation(), rest); err != nil {
			fmt.Println(err)
		}
	case "/pin":
		if err := a.store.TogglePin(a.ensureConversation()); err != nil {
			fmt.Println(err)
		}
	case "/delete":
		a.deleteConversation()
	case "/export":
		a.export(args)
	case "/model":
		a.setModel(rest)
	case "/regen":
		a.rerun(func(convID string) error {
			return a.ctrl.Regenerate(ctx, convID)
		})
	case "/edit":
		a.edit(ctx, args)
	case "/versions":
		a.printVersions(args)
	case "/version":
		a.selectVersion(ctx, args)
	case "/attach":
		a.attach(rest)
	case "/facts":
		a.printFacts()
	case "/forget":
		if len(args) != 1 {
			fmt.Println("usage: /forget <fact-id>")
			break
		}
		a.memory.RemoveFact(args[0])
	case "/goal":
		if rest == "" {
			fmt.Println("usage: /goal <text>")
			break
		}
		a.memory.AddGoal(rest)
	case "/login":
		if len(args) != 2 {
			fmt.Println("usage: /login <email> <password>")
			break
		}
		if _, err := a.accounts.Login(args[0], args[1]); err != nil {
			fmt.Println(err)
			break
		}
		a.reload()
		a.printIdentity()
	case "/register":
		if len(args) != 3 {
			fmt.Println("usage: /register <name> <email> <password>")
			break
		}
		if _, err := a.accounts.Register(args[0], args[1], args[2]); err != nil {
			fmt.Println(err)
			break
		}
		a.reload()
		a.printIdentity()
	case "/logout":
		if err := a.accounts.Logout(); err != nil {
			fmt.Println(err)
			break
		}
		a.reload()
		a.printIdentity()
	case "/delete-account":
		if err := a.accounts.DeleteAccount(); err != nil {
			fmt.Println(err)
			break
		}
		a.reload()
		a.printIdentity()
	case "/whoami":
		a.printIdentity()
	default:
		fmt.Printf("unknown command %s, try /help\n", cmd)
	}
	return false
}

func (a *app) printHelp() {
	fmt.Print(`  <text>                     send a message
  /new [title]               start a new conversation
  /list                      list conversations
  /switch <n>                switch to conversation n
  /rename <title> /pin       retitle or pin the current conversation
  /delete                    delete the current conversation
  /export <md|json|txt> [f]  export the current conversation
  /model <fast|capable>      set the current conversation's model tier
  /regen                     regenerate the last answer
  /edit <n> <text>           edit message n and rerun from there
  /versions <n>              show the content versions of message n
  /version <n> <i>           activate version i of message n
  /attach <file>             attach a text file to the next message
  /facts /forget <id> /goal  manage memory
  /login /register /logout   account session
  /delete-account            delete the account and its data
  /quit
`)
}

func (a *app) printIdentity() {
	if u := a.accounts.Current(); u != nil {
		fmt.Printf("signed in as %s <%s>\n", u.Name, u.Email)
		return
	}
	fmt.Println("browsing as guest")
}

func (a *app) printConversations() {
	sorted := a.store.Sorted()
	if len(sorted) == 0 {
		fmt.Println("no conversations yet")
		return
	}
	for i, conv := range sorted {
		marker := " "
		if conv.ID == a.currentID {
			marker = "*"
		}
		title := conv.Title
		if title == "" {
			title = a.tr.T("newChatTitle")
		}
		fmt.Printf("%s %2d. %s (%d messages, %s)\n", marker, i+1, title, len(conv.Messages), conv.Model)
	}
}

func (a *app) switchConversation(args []string) {
	sorted := a.store.Sorted()
	if len(args) != 1 {
		fmt.Println("usage: /switch <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(sorted) {
		fmt.Printf("pick a conversation between 1 and %d\n", len(sorted))
		return
	}
	a.currentID = sorted[n-1].ID
	fmt.Printf("switched to %q\n", sorted[n-1].Title)
}

func (a *app) deleteConversation() {
	if a.currentID == "" {
		fmt.Println("no conversation selected")
		return
	}
	a.store.Remove(a.currentID)
	a.currentID = ""
	if sorted := a.store.Sorted(); len(sorted) > 0 {
		a.currentID = sorted[0].ID
	}
	fmt.Println("conversation deleted")
}

func (a *app) export(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: /export <md|json|txt> [file]")
		return
	}
	conv, err := a.store.Get(a.ensureConversation())
	if err != nil {
		fmt.Println(err)
		return
	}
	format := conversation.ExportFormat(args[0])

	out := os.Stdout
	if len(args) == 2 {
		f, err := os.Create(args[1])
		if err != nil {
			fmt.Println(err)
			return
		}
		defer f.Close()
		out = f
	}
	if err := conversation.Export(out, conv, format); err != nil {
		fmt.Println(err)
		return
	}
	if len(args) == 2 {
		fmt.Printf("exported to %s\n", args[1])
	}
}

func (a *app) setModel(tier string) {
	var model string
	switch tier {
	case "fast":
		model = conversation.ModelFast
	case "capable":
		model = conversation.ModelCapable
	default:
		fmt.Println("usage: /model <fast|capable>")
		return
	}
	if err := a.store.SetModel(a.ensureConversation(), model); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("model set to %s\n", model)
}

// ensureConversation returns the current conversation's id, creating one if
// the session has none.
func (a *app) ensureConversation() string {
	if a.currentID != "" {
		if _, err := a.store.Get(a.currentID); err == nil {
			return a.currentID
		}
	}
	conv := conversation.New("", conversation.ModelFast)
	a.store.Add(conv)
	a.currentID = conv.ID
	return a.currentID
}

func (a *app) send(ctx context.Context, text string) {
	convID := a.ensureConversation()

	var opts []conversation.MessageOption
	if a.attachment != nil {
		opts = append(opts, conversation.WithTextAttachment(a.attachment))
		a.attachment = nil
	}

	a.resetSteps()
	if err := a.ctrl.Send(ctx, convID, text, opts...); err != nil {
		fmt.Println(err)
		return
	}
	a.printLastMessage(convID)
}

func (a *app) rerun(run func(convID string) error) {
	convID := a.ensureConversation()
	a.resetSteps()
	if err := run(convID); err != nil {
		fmt.Println(err)
		return
	}
	a.printLastMessage(convID)
}

// messageAt resolves a 1-based message index in the current conversation.
func (a *app) messageAt(arg string) (*conversation.Message, string, bool) {
	convID := a.ensureConversation()
	conv, err := a.store.Get(convID)
	if err != nil {
		fmt.Println(err)
		return nil, "", false
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(conv.Messages) {
		fmt.Printf("pick a message between 1 and %d\n", len(conv.Messages))
		return nil, "", false
	}
	return conv.Messages[n-1], convID, true
}

func (a *app) edit(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: /edit <n> <text>")
		return
	}
	msg, convID, ok := a.messageAt(args[0])
	if !ok {
		return
	}
	if msg.Role != conversation.RoleUser {
		fmt.Println("only your own messages can be edited")
		return
	}
	a.resetSteps()
	if err := a.ctrl.Edit(ctx, convID, msg.ID, strings.Join(args[1:], " ")); err != nil {
		fmt.Println(err)
		return
	}
	a.printLastMessage(convID)
}

func (a *app) printVersions(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: /versions <n>")
		return
	}
	msg, _, ok := a.messageAt(args[0])
	if !ok {
		return
	}
	for i, content := range msg.ContentHistory {
		marker := " "
		if i == msg.ActiveVersionIndex {
			marker = "*"
		}
		fmt.Printf("%s %d. %s\n", marker, i+1, firstLine(content))
	}
}

func (a *app) selectVersion(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: /version <n> <i>")
		return
	}
	msg, convID, ok := a.messageAt(args[0])
	if !ok {
		return
	}
	i, err := strconv.Atoi(args[1])
	if err != nil || i < 1 || i > len(msg.ContentHistory) {
		fmt.Printf("pick a version between 1 and %d\n", len(msg.ContentHistory))
		return
	}
	a.resetSteps()
	if err := a.ctrl.SelectVersion(ctx, convID, msg.ID, i-1); err != nil {
		fmt.Println(err)
		return
	}
	a.printLastMessage(convID)
}

func (a *app) attach(path string) {
	if path == "" {
		fmt.Println("usage: /attach <file>")
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	title := filepath.Base(path)
	a.attachment = &conversation.TextAttachment{
		Title:   title,
		Content: string(b),
	}
	a.recents.Add(conversation.RecentAttachment{
		Type:    conversation.AttachmentText,
		Title:   title,
		Content: string(b),
	})
	fmt.Printf("attached %s (%d bytes), it rides along with your next message\n", title, len(b))
}

func (a *app) printFacts() {
	facts := a.memory.Facts()
	goals := a.memory.Goals()
	if len(facts) == 0 && len(goals) == 0 {
		fmt.Println("nothing remembered yet")
		return
	}
	for _, f := range facts {
		fmt.Printf("  fact %s: %s\n", f.ID, f.Content)
	}
	for _, g := range goals {
		fmt.Printf("  goal %s: %s\n", g.ID, g.Content)
	}
}

func (a *app) printLastMessage(convID string) {
	conv, err := a.store.Get(convID)
	if err != nil {
		return
	}
	msg := conv.LastMessage()
	if msg == nil {
		return
	}

	switch msg.Role {
	case conversation.RoleSystem:
		fmt.Printf("-- %s\n", msg.ActiveContent())
		return
	case conversation.RoleModel:
	default:
		return
	}

	fmt.Println(msg.ActiveContent())
	if msg.Artifact != nil {
		fmt.Printf("  [%s artifact attached]\n", msg.Artifact.Kind)
	}
	for _, g := range msg.Grounding {
		fmt.Printf("  source: %s (%s)\n", g.Title, g.URI)
	}
	for _, v := range msg.VideoSearchResults {
		fmt.Printf("  video: %s — %s\n", v.Title, v.ChannelTitle)
	}
	if msg.GenerationTime > 0 {
		fmt.Printf("  (%.1fs)\n", msg.GenerationTime.Seconds())
	}
}

func (a *app) resetSteps() {
	a.mu.Lock()
	a.lastStep = ""
	a.mu.Unlock()
}

// renderEvent prints turn progress as it streams through the router. Step
// updates carry the whole list, so only the newest active entry is shown and
// repeats are suppressed.
func (a *app) renderEvent(msg *message.Message) error {
	ev, err := events.NewEventFromJSON(msg.Payload)
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case *events.EventStepUpdate:
		line := activeStepLine(e.Steps)
		a.mu.Lock()
		changed := line != "" && line != a.lastStep
		if changed {
			a.lastStep = line
		}
		a.mu.Unlock()
		if changed {
			fmt.Printf("  %s\n", line)
		}
	case *events.EventArtifactProgress:
		if e.Progress != nil {
			status := e.Progress.Status
			if status == "" {
				status = string(e.Progress.Kind)
			}
			fmt.Printf("  … %s\n", status)
		}
	case *events.EventToast:
		if e.Title != "" {
			fmt.Printf("  [%s] %s: %s\n", e.Level, e.Title, e.Text)
		} else {
			fmt.Printf("  [%s] %s\n", e.Level, e.Text)
		}
	case *events.EventTurnError:
		fmt.Printf("  turn failed: %s\n", e.ErrorString)
	}
	return nil
}

func activeStepLine(steps []*conversation.AnalysisStep) string {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.Status != conversation.StepActive {
			continue
		}
		line := "⋯ " + s.Title
		if s.Type == conversation.StepAgent || s.Type == conversation.StepTask {
			line = "⋯   " + s.Title
		}
		if s.Details != "" {
			line += " — " + s.Details
		}
		return line
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "…"
	}
	return s
}

// consoleUI receives computerControl mutations. A terminal has no theme
// engine, so settings are acknowledged and logged.
type consoleUI struct {
	mu         sync.Mutex
	theme      string
	font       string
	background string
}

func (u *consoleUI) SetTheme(value string) error {
	u.mu.Lock()
	u.theme = value
	u.mu.Unlock()
	fmt.Printf("  [ui] theme → %s\n", value)
	return nil
}

func (u *consoleUI) SetFont(value string) error {
	u.mu.Lock()
	u.font = value
	u.mu.Unlock()
	fmt.Printf("  [ui] font → %s\n", value)
	return nil
}

func (u *consoleUI) SetBackground(value string) error {
	u.mu.Lock()
	u.background = value
	u.mu.Unlock()
	fmt.Printf("  [ui] background → %s\n", value)
	return nil
}

func (u *consoleUI) RequestLogin() error {
	fmt.Println("  [ui] use /login <email> <password> to sign in")
	return nil
}

// consoleOpener surfaces openWebsite calls without leaving the terminal.
type consoleOpener struct{}

func (consoleOpener) Open(url string) error {
	fmt.Printf("  [open] %s\n", url)
	return nil
}
