package types

type SourceKind string

const (
	SourceKindSystem    SourceKind = "system"
	SourceKindExtension SourceKind = "extension"
)

type Channel string

const (
	ChannelSystem    Channel = "staging-system"
	ChannelExtension Channel = "staging-extension"
	ChannelFailed    Channel = "staging-failed"
)

// ArtifactChannels are the channels holding installable packages and
// source archives, in listing order.
var ArtifactChannels = []Channel{ChannelSystem, ChannelExtension}

// AllChannels includes the failure marker channel.
var AllChannels = []Channel{ChannelSystem, ChannelExtension, ChannelFailed}

// ChannelForKind returns the artifact channel packages of the given kind are
// published to.
func ChannelForKind(kind SourceKind) Channel {
	if kind == SourceKindSystem {
		return ChannelSystem
	}
	return ChannelExtension
}

// Dir is the local directory name used for the channel when laying out
// staged or fetched artifacts.
func (c Channel) Dir() string {
	switch c {
	case ChannelSystem:
		return string(SourceKindSystem)
	case ChannelExtension:
		return string(SourceKindExtension)
	default:
		return "failed"
	}
}

type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeTodo    Outcome = "todo"
)

type SyncMode string

const (
	// SyncUpgrade refreshes databases and upgrades to the staged packages.
	SyncUpgrade SyncMode = "upgrade"
	// SyncDowngrade refreshes databases and allows downgrades back to the
	// unstaged state.
	SyncDowngrade SyncMode = "downgrade"
)
