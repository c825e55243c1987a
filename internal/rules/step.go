package rules

// Flag expressions passed to Session.StoreFlags.
const (
	FlagSeen    = `\Seen`
	FlagDeleted = `\Deleted`
)

// StepKind selects the operation a pipeline step performs.
type StepKind int

const (
	StepExpunge StepKind = iota
	StepDelete
	StepCopy
	StepMove
	StepSetFlags
	StepSetFlagsAndMove
	StepContent
)

// ContentKind selects which content handler a StepContent step runs.
type ContentKind int

const (
	ContentAutoForwardReply ContentKind = iota
	ContentRejectAndDelete
	ContentFetchProxy
)

// Step is one handler in a rule's pipeline: a tagged variant carrying the
// construction parameters for its kind.
type Step struct {
	Kind    StepKind
	Folder  string
	Flags   []string
	Content ContentKind
}

// Expunge permanently removes messages flagged for deletion.
func Expunge() Step { return Step{Kind: StepExpunge} }

// Delete flags the matched messages for deletion.
func Delete() Step { return Step{Kind: StepDelete} }

// Copy copies the matched messages into folder.
func Copy(folder string) Step { return Step{Kind: StepCopy, Folder: folder} }

// Move copies the matched messages into folder and flags the originals for
// deletion. The delete only runs if the copy succeeded.
func Move(folder string) Step { return Step{Kind: StepMove, Folder: folder} }

// SetFlags adds the given flags to the matched messages.
func SetFlags(flags ...string) Step { return Step{Kind: StepSetFlags, Flags: flags} }

// SetFlagsAndMove adds flags and then moves the matched messages.
func SetFlagsAndMove(folder string, flags ...string) Step {
	return Step{Kind: StepSetFlagsAndMove, Folder: folder, Flags: flags}
}

// AutoForwardReply forwards each unseen matched message internally and
// replies to its sender.
func AutoForwardReply() Step { return Step{Kind: StepContent, Content: ContentAutoForwardReply} }

// RejectAndDelete removes the matched messages and sends each unseen sender
// a rejection reply.
func RejectAndDelete() Step { return Step{Kind: StepContent, Content: ContentRejectAndDelete} }

// FetchProxy retrieves URLs found in each unseen matched message and files
// the fetched content as new messages.
func FetchProxy() Step { return Step{Kind: StepContent, Content: ContentFetchProxy} }

// Rule pairs a compiled filter query with the pipeline to run over its
// matches. Rules are immutable once the table is built.
type Rule struct {
	Name  string
	Query string
	Steps []Step
}
