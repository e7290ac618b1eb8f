package persist

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// GuestNamespace is the persistence namespace active when nobody is logged
// in.
const GuestNamespace = "guest"

// ErrCorrupted reports that a stored payload could not be parsed. The
// payload has been preserved under a timestamped backup key and the caller
// should proceed with empty state.
var ErrCorrupted = errors.New("stored data is corrupted")

// Snapshot is the serialized bundle for one namespace.
type Snapshot struct {
	Conversations     []*conversation.Conversation    `json:"conversations"`
	MemoryFacts       []conversation.MemoryFact       `json:"memoryFacts"`
	CoachGoals        []conversation.CoachGoal        `json:"coachGoals"`
	RecentAttachments []conversation.RecentAttachment `json:"recentAttachments"`
}

// CloudConnections maps a provider name to its connection state. Stored as
// its own bundle, replaced whole.
type CloudConnections map[string]bool

func dataKey(namespace string) string {
	if namespace == GuestNamespace {
		return "lampwick-guest-data"
	}
	return "lampwick-chat-data-" + namespace
}

func cloudKey(namespace string) string {
	if namespace == GuestNamespace {
		return "lampwick-guest-cloud-connections"
	}
	return "lampwick-cloud-connections-" + namespace
}

// Persister saves and loads namespace bundles, stripping transient state on
// the way out and migrating legacy shapes on the way in.
type Persister struct {
	storage Storage
	now     func() time.Time
}

type PersisterOption func(*Persister)

func WithClock(now func() time.Time) PersisterOption {
	return func(p *Persister) { p.now = now }
}

func NewPersister(storage Storage, opts ...PersisterOption) *Persister {
	p := &Persister{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// stripTransient removes in-flight state and raw binary payloads that must
// never survive a restart. Operates on a deep copy.
func stripTransient(convs []*conversation.Conversation) []*conversation.Conversation {
	out := clone.Clone(convs).([]*conversation.Conversation)
	for _, conv := range out {
		for _, msg := range conv.Messages {
			msg.IsTyping = false
			msg.AnalysisState = nil
			msg.Pending = nil
			msg.CodeBlock = nil
			msg.RequiresKeySelection = false
			if msg.Artifact != nil && msg.Artifact.Video != nil {
				msg.Artifact.Video.Data = ""
			}
		}
	}
	return out
}

// Save serializes the snapshot into the namespace's data key.
func (p *Persister) Save(namespace string, snap *Snapshot) error {
	stripped := &Snapshot{
		Conversations:     stripTransient(snap.Conversations),
		MemoryFacts:       snap.MemoryFacts,
		CoachGoals:        snap.CoachGoals,
		RecentAttachments: snap.RecentAttachments,
	}
	b, err := json.Marshal(stripped)
	if err != nil {
		return errors.Wrap(err, "failed to serialize snapshot")
	}
	return p.storage.Set(dataKey(namespace), string(b))
}

// Load reads the namespace's snapshot. A missing key yields an empty
// snapshot. A payload that cannot be parsed at all is backed up under a
// timestamped key and reported as ErrCorrupted; individual conversations
// that fail migration are skipped with a log line rather than failing the
// load.
func (p *Persister) Load(namespace string) (*Snapshot, error) {
	key := dataKey(namespace)
	raw, ok, err := p.storage.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot")
	}
	if !ok {
		return &Snapshot{}, nil
	}

	var stored struct {
		Conversations     []json.RawMessage               `json:"conversations"`
		MemoryFacts       []conversation.MemoryFact       `json:"memoryFacts"`
		CoachGoals        []conversation.CoachGoal        `json:"coachGoals"`
		RecentAttachments []conversation.RecentAttachment `json:"recentAttachments"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		backupKey := key + "-corrupted-backup-" + p.now().UTC().Format(time.RFC3339)
		log.Error().Err(err).Str("backup_key", backupKey).Msg("stored data is corrupted, backing it up")
		if backupErr := p.storage.Set(backupKey, raw); backupErr != nil {
			log.Error().Err(backupErr).Msg("failed to write corruption backup")
		}
		if delErr := p.storage.Delete(key); delErr != nil {
			log.Error().Err(delErr).Msg("failed to clear corrupted key")
		}
		return &Snapshot{}, ErrCorrupted
	}

	snap := &Snapshot{
		MemoryFacts:       stored.MemoryFacts,
		CoachGoals:        stored.CoachGoals,
		RecentAttachments: stored.RecentAttachments,
	}
	for i, rawConv := range stored.Conversations {
		conv, err := conversation.MigrateConversation(rawConv)
		if err != nil {
			log.Error().Err(err).Int("index", i).Msg("skipping conversation that failed migration")
			continue
		}
		snap.Conversations = append(snap.Conversations, conv)
	}
	return snap, nil
}

// SaveCloud stores the cloud-connections bundle for the namespace.
func (p *Persister) SaveCloud(namespace string, connections CloudConnections) error {
	b, err := json.Marshal(connections)
	if err != nil {
		return errors.Wrap(err, "failed to serialize cloud connections")
	}
	return p.storage.Set(cloudKey(namespace), string(b))
}

// LoadCloud reads the cloud-connections bundle; unparseable data yields an
// empty map.
func (p *Persister) LoadCloud(namespace string) CloudConnections {
	raw, ok, err := p.storage.Get(cloudKey(namespace))
	if err != nil || !ok {
		return CloudConnections{}
	}
	var connections CloudConnections
	if err := json.Unmarshal([]byte(raw), &connections); err != nil {
		log.Error().Err(err).Msg("failed to parse cloud connections")
		return CloudConnections{}
	}
	return connections
}

// MergeGuest folds the guest namespace into an authenticated one: guest
// conversations are prepended, recent attachments are merged with identity
// de-duplication, then the guest keys are removed. Called once on first
// login.
func (p *Persister) MergeGuest(namespace string) error {
	if _, ok, err := p.storage.Get(dataKey(GuestNamespace)); err != nil {
		return errors.Wrap(err, "failed to check guest data")
	} else if !ok {
		return nil
	}
	guest, err := p.Load(GuestNamespace)
	if errors.Is(err, ErrCorrupted) {
		// corrupted guest data has already been backed up, nothing to fold in
		return nil
	}
	if err != nil {
		return err
	}

	target, err := p.Load(namespace)
	if err != nil && !errors.Is(err, ErrCorrupted) {
		return err
	}

	target.Conversations = append(guest.Conversations, target.Conversations...)

	existing := make(map[string]bool, len(target.RecentAttachments))
	for _, att := range target.RecentAttachments {
		existing[att.Identity()] = true
	}
	merged := make([]conversation.RecentAttachment, 0, len(guest.RecentAttachments)+len(target.RecentAttachments))
	for _, att := range guest.RecentAttachments {
		if !existing[att.Identity()] {
			merged = append(merged, att)
		}
	}
	merged = append(merged, target.RecentAttachments...)
	if len(merged) > conversation.MaxRecentAttachments {
		merged = merged[:conversation.MaxRecentAttachments]
	}
	target.RecentAttachments = merged

	if err := p.Save(namespace, target); err != nil {
		return err
	}
	if err := p.storage.Delete(dataKey(GuestNamespace)); err != nil {
		return errors.Wrap(err, "failed to remove guest data")
	}
	return nil
}
