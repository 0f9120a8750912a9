package values

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/karma"
	"team-pulse/internal/storage"
)

var answersKey = storage.MiscAssociation("values")

const (
	soloTemplate  = "Here is something @{sender} thinks is connected to our value(s) of *{values}*:\n{text}"
	groupTemplate = "Here is something @{sender} thinks @{usernames} did, that is connected to our value(s) of *{values}*:\n{text}"
	thanksText    = "Thanks for sharing! Your answer has been registered."
)

// Answer is one submitted survey answer.
type Answer struct {
	Username      string   `json:"username"`
	SelectedUsers []string `json:"selectedUsers,omitempty"`
	Values        []string `json:"values"`
	Answer        string   `json:"answer"`
}

// Submission is a survey answer before validation.
type Submission struct {
	Values    []string `validate:"min=1,dive,known"`
	Reason    string   `validate:"required"`
	Usernames []string `validate:"dive,member"`
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range e.fieldNames() {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "values: invalid answer: " + strings.Join(parts, "; ")
}

// Message lists the problems for the user, one per line.
func (e *ValidationError) Message() string {
	lines := make([]string, 0, len(e.Fields))
	for _, k := range e.fieldNames() {
		lines = append(lines, "⚠️ "+e.Fields[k])
	}
	return strings.Join(lines, "\n")
}

func (e *ValidationError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

var fieldMessages = map[string]map[string]string{
	"Values": {
		"min":   "Please select at least one value",
		"known": "Unknown value",
	},
	"Reason": {
		"required": "Please type a reason",
	},
	"Usernames": {
		"member": "Unknown member",
	},
}

type Workflow struct {
	kit      *botkit.Kit
	store    storage.Store
	points   *karma.Ledger
	values   []string
	validate *validator.Validate
}

// New builds the survey over the given team values, e.g. Dream, Own, Trust, Share.
func New(kit *botkit.Kit, store storage.Store, points *karma.Ledger, values []string) *Workflow {
	w := &Workflow{kit: kit, store: store, points: points, values: values}
	w.validate = validator.New(validator.WithRequiredStructEnabled())
	_ = w.validate.RegisterValidation("known", func(fl validator.FieldLevel) bool {
		_, ok := w.canonical(fl.Field().String())
		return ok
	})
	_ = w.validate.RegisterValidationCtx("member", isMember)
	return w
}

func (w *Workflow) canonical(value string) (string, bool) {
	for _, v := range w.values {
		if strings.EqualFold(v, strings.TrimSpace(value)) {
			return v, true
		}
	}
	return "", false
}

func (w *Workflow) prompt() string {
	var b strings.Builder
	b.WriteString("Our values are easily remembered. Do you know what they mean?\n\n")
	for _, v := range w.values {
		fmt.Fprintf(&b, "We *%s*\n", v)
	}
	b.WriteString("\nWhat is something that happened, or someone who did something, that represents our values?\n")
	fmt.Fprintf(&b, "Reply with `/values %s [@user ...] what happened`", strings.Join(w.values, ","))
	return b.String()
}

// Run sends the survey to every member.
func (w *Workflow) Run(ctx context.Context) error {
	text := w.prompt()
	_, err := w.kit.EachMember(ctx, "values survey", func(ctx context.Context, u chat.User) error {
		_, err := w.kit.SendDirect(ctx, u, text)
		return err
	})
	return err
}

// Submit validates and records an answer from sender: every selected member
// and the sender get one value point, and the answer is posted to the praise room.
func (w *Workflow) Submit(ctx context.Context, sender chat.User, s Submission) error {
	s, err := w.normalize(ctx, sender, s)
	if err != nil {
		return err
	}

	for _, u := range append(append([]string(nil), s.Usernames...), sender.Username) {
		if err := w.points.Increment(ctx, u, 1); err != nil {
			return fmt.Errorf("values: points for @%s: %w", u, err)
		}
	}
	answer := Answer{Username: sender.Username, SelectedUsers: s.Usernames, Values: s.Values, Answer: s.Reason}
	if err := storage.AppendJSON(ctx, w.store, answersKey, answer); err != nil {
		return fmt.Errorf("values: save answer: %w", err)
	}
	log.Printf("👏 @%s shared a values story (%s)", sender.Username, strings.Join(s.Values, ", "))

	room := w.kit.Settings().PraiseRoomID
	if room == 0 {
		log.Printf("⚠️ praise room is not configured, values answer not posted")
		return nil
	}
	w.kit.Post(ctx, room, Format(sender.Username, s.Usernames, s.Values, s.Reason))
	return nil
}

func (w *Workflow) normalize(ctx context.Context, sender chat.User, s Submission) (Submission, error) {
	members, err := w.kit.Members(ctx)
	if err != nil {
		return s, fmt.Errorf("values: %w", err)
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.Username] = true
	}

	var (
		vals  []string
		seen  = make(map[string]bool)
		users []string
	)
	for _, v := range s.Values {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if c, ok := w.canonical(v); ok {
			v = c
		}
		if !seen[v] {
			seen[v] = true
			vals = append(vals, v)
		}
	}
	for _, u := range s.Usernames {
		u = strings.TrimPrefix(strings.TrimSpace(u), "@")
		if u == "" || u == sender.Username || seen["@"+u] {
			continue
		}
		seen["@"+u] = true
		users = append(users, u)
	}
	s = Submission{Values: vals, Reason: strings.TrimSpace(s.Reason), Usernames: users}

	ctx = context.WithValue(ctx, membersKey{}, known)
	return s, validationError(w.validate.StructCtx(ctx, s))
}

type membersKey struct{}

func isMember(ctx context.Context, fl validator.FieldLevel) bool {
	known, _ := ctx.Value(membersKey{}).(map[string]bool)
	return known[fl.Field().String()]
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		msg := fieldMessages[field][fe.Tag()]
		if msg == "" {
			msg = fe.Tag()
		}
		if item, ok := fe.Value().(string); ok && fe.Tag() != "required" {
			if prev, ok := out.Fields[field]; ok {
				out.Fields[field] = prev + ", " + item
				continue
			}
			msg += ": " + item
		}
		out.Fields[field] = msg
	}
	return out
}

// Format renders the public recognition message.
func Format(sender string, usernames, values []string, text string) string {
	msg := soloTemplate
	if len(usernames) > 0 {
		msg = groupTemplate
	}
	r := strings.NewReplacer(
		"{sender}", sender,
		"{usernames}", joinUsernames(usernames),
		"{values}", strings.Join(values, ", "),
		"{text}", text,
	)
	return r.Replace(msg)
}

func joinUsernames(usernames []string) string {
	switch len(usernames) {
	case 0:
		return ""
	case 1:
		return usernames[0]
	}
	last := len(usernames) - 1
	return strings.Join(usernames[:last], ", @") + " and @" + usernames[last]
}

// ParseCommand reads "Value1,Value2 [@user ...] reason".
func ParseCommand(args string) Submission {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Submission{}
	}
	var s Submission
	for _, v := range strings.Split(fields[0], ",") {
		if v = strings.TrimSpace(v); v != "" {
			s.Values = append(s.Values, v)
		}
	}
	rest := fields[1:]
	for len(rest) > 0 && strings.HasPrefix(rest[0], "@") {
		s.Usernames = append(s.Usernames, strings.TrimRight(rest[0], ",;"))
		rest = rest[1:]
	}
	s.Reason = strings.Join(rest, " ")
	return s
}

// Command handles "/values Value1,Value2 [@user ...] reason".
func (w *Workflow) Command(ctx context.Context, in chat.Inbound, args string) error {
	if strings.TrimSpace(args) == "" {
		w.kit.Post(ctx, in.Room.ID, w.prompt())
		return nil
	}
	err := w.Submit(ctx, in.Sender, ParseCommand(args))
	var ve *ValidationError
	if errors.As(err, &ve) {
		w.kit.Post(ctx, in.Room.ID, ve.Message())
		return nil
	}
	if err != nil {
		return err
	}
	w.kit.Post(ctx, in.Room.ID, thanksText)
	return nil
}

// Scoreboard renders the top value points.
func (w *Workflow) Scoreboard(ctx context.Context) (string, error) {
	entries, err := w.points.Entries(ctx)
	if err != nil {
		return "", fmt.Errorf("values: scoreboard: %w", err)
	}
	return karma.Render("Values Scoreboard", karma.Rank(entries, karma.DefaultLimit)), nil
}
