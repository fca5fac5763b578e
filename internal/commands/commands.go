package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"heroshell/internal/collection"
	"heroshell/internal/logging"
	"heroshell/internal/shell"
)

// Env is what the commands operate on.
type Env struct {
	Collection *collection.Manager
	Prompter   Prompter
	Registry   *shell.Registry
	History    *shell.History
	// ScriptCommand is the name execute_script is registered under.
	ScriptCommand string
	// Today returns creation dates for new elements.
	Today func() time.Time
}

// Register installs the full command set into env.Registry in help order.
func Register(env Env) {
	if env.ScriptCommand == "" {
		env.ScriptCommand = shell.DefaultScriptCommand
	}
	if env.Today == nil {
		env.Today = collection.Today
	}
	builder := NewElementBuilder(env.Prompter)
	m := env.Collection

	reg := env.Registry
	reg.Register("help", &helpCmd{base{"help", "show help for the available commands"}, reg})
	reg.Register("add", &addCmd{base{"add {element}", "add a new element to the collection"}, m, builder, env.Today})
	reg.Register("load", &loadCmd{base{"load", "reload the collection from the dump"}, m})
	reg.Register("info", &infoCmd{base{"info", "show information about the collection"}, m})
	reg.Register("show", &showCmd{base{"show", "show every element of the collection"}, m})
	reg.Register("insert", &insertCmd{base{"insert <key> {element}", "add a new element under the given key"}, m, builder, env.Today})
	reg.Register("update", &updateCmd{base{"update <key> {element}", "replace the element stored under the given key"}, m, builder})
	reg.Register("remove_key", &removeKeyCmd{base{"remove_key <key>", "remove the element stored under the given key"}, m})
	reg.Register("clear", &clearCmd{base{"clear", "remove every element"}, m})
	reg.Register("save", &saveCmd{base{"save", "save the collection to the dump"}, m})
	reg.Register(env.ScriptCommand, &executeScriptCmd{base{env.ScriptCommand + " <file_name>", "run commands from a script file"}})
	reg.Register("exit", &exitCmd{base{"exit", "end the session without saving"}})
	reg.Register("remove_greater", &removeByKeyCmd{base{"remove_greater <key>", "remove every element with a key greater than the given one"}, m, 1})
	reg.Register("remove_lower", &removeByKeyCmd{base{"remove_lower <key>", "remove every element with a key lower than the given one"}, m, -1})
	reg.Register("replace_if_greater", &replaceIfGreaterCmd{base{"replace_if_greater <key> {element}", "replace the element under the key if the new one is greater"}, m, builder})
	reg.Register("sum_of_impact_speed", &sumImpactSpeedCmd{base{"sum_of_impact_speed", "show the sum of impactSpeed over all elements"}, m})
	reg.Register("filter_less_than_car", &filterLessThanCarCmd{base{"filter_less_than_car <car>", "show elements whose car name is less than the given one"}, m})
	reg.Register("print_field_descending_weapon_type", &weaponDescendingCmd{base{"print_field_descending_weapon_type", "show every weaponType in descending order"}, m})
	reg.Register("command_history", &historyCmd{base{"command_history", "show the executed commands"}, env.History})
	reg.Register("show_command_history", &historyCmd{base{"show_command_history", "same as command_history"}, env.History})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

type base struct {
	usage string
	desc  string
}

func (b base) Usage() string       { return b.usage }
func (b base) Description() string { return b.desc }

func (b base) wrongArgs() shell.Response {
	return shell.Fail(fmt.Sprintf("Wrong number of arguments!\nUsage: '%s'", b.usage))
}

// key parses a natural number key from args. ok is false when resp holds
// the failure to return.
func (b base) key(args shell.Args) (key int, resp shell.Response, ok bool) {
	if args.Rest() == "" {
		return 0, shell.Fail(fmt.Sprintf("Key must be specified!\nUsage: '%s'", b.usage)), false
	}
	k, err := strconv.Atoi(args.Rest())
	if err != nil || k < 1 {
		return 0, shell.Fail("Key must be a natural number greater than 0!"), false
	}
	return k, shell.Response{}, true
}

func buildFailed(err error) shell.Response {
	logging.Get(logging.CategoryCommands).Warn("Element input aborted: %v", err)
	if errors.Is(err, ErrInputExhausted) {
		return shell.Fail("Input ended before the element was complete! Creation aborted.")
	}
	return shell.Fail(fmt.Sprintf("Element fields are invalid: %v", err))
}

// =============================================================================
// GENERAL
// =============================================================================

type helpCmd struct {
	base
	reg *shell.Registry
}

func (c *helpCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	var lines []string
	for _, e := range c.reg.Entries() {
		lines = append(lines, fmt.Sprintf(" %-35s %s", e.Command.Usage(), e.Command.Description()))
	}
	return shell.OK(strings.Join(lines, "\n"))
}

type executeScriptCmd struct {
	base
}

// Apply only validates the argument; the shell runs the script itself.
func (c *executeScriptCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() == "" {
		return c.wrongArgs()
	}
	return shell.OK(fmt.Sprintf("Executing script '%s'...", args.Rest()))
}

type exitCmd struct {
	base
}

func (c *exitCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	return shell.Terminate("Exiting...")
}

type historyCmd struct {
	base
	history *shell.History
}

func (c *historyCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	var b strings.Builder
	b.WriteString("Executed commands:")
	for i, name := range c.history.Entries() {
		fmt.Fprintf(&b, "\n%d. %s", i+1, name)
	}
	return shell.OK(b.String())
}

// =============================================================================
// COLLECTION QUERIES
// =============================================================================

type infoCmd struct {
	base
	m *collection.Manager
}

func (c *infoCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	stamp := func(t time.Time, never string) string {
		if t.IsZero() {
			return never
		}
		return t.Format("2006-01-02 15:04:05")
	}
	var b strings.Builder
	b.WriteString("Collection info:\n")
	b.WriteString(" Type: HumanBeing map ordered by key\n")
	fmt.Fprintf(&b, " Elements: %d\n", c.m.Len())
	fmt.Fprintf(&b, " Last save: %s\n", stamp(c.m.LastSave(), "no save in this session yet"))
	fmt.Fprintf(&b, " Last load: %s", stamp(c.m.LastInit(), "no load in this session yet"))
	return shell.OK(b.String())
}

type showCmd struct {
	base
	m *collection.Manager
}

func (c *showCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	return shell.OK(c.m.String())
}

type sumImpactSpeedCmd struct {
	base
	m *collection.Manager
}

func (c *sumImpactSpeedCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	var sum float32
	for _, h := range c.m.Values() {
		sum += h.ImpactSpeed
	}
	return shell.OK("Sum of impactSpeed over all elements: " + strconv.FormatFloat(float64(sum), 'f', -1, 32))
}

type filterLessThanCarCmd struct {
	base
	m *collection.Manager
}

func (c *filterLessThanCarCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() == "" {
		return shell.Fail(fmt.Sprintf("Car name must be specified!\nUsage: '%s'", c.usage))
	}
	var lines []string
	for _, h := range c.m.Values() {
		if h.Car != nil && h.Car.Name < args.Rest() {
			lines = append(lines, h.String())
		}
	}
	if len(lines) == 0 {
		return shell.OK("No elements with a car less than " + args.Rest())
	}
	return shell.OK(strings.Join(lines, "\n"))
}

type weaponDescendingCmd struct {
	base
	m *collection.Manager
}

func (c *weaponDescendingCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	values := c.m.Values()
	if len(values) == 0 {
		return shell.OK("The collection has no elements with a weaponType!")
	}
	weapons := make([]collection.WeaponType, 0, len(values))
	for _, h := range values {
		weapons = append(weapons, h.WeaponType)
	}
	sort.Slice(weapons, func(i, j int) bool { return weapons[i] > weapons[j] })

	lines := make([]string, len(weapons))
	for i, w := range weapons {
		lines[i] = w.String()
	}
	return shell.OK(strings.Join(lines, "\n"))
}

// =============================================================================
// COLLECTION MUTATIONS
// =============================================================================

type addCmd struct {
	base
	m       *collection.Manager
	builder *ElementBuilder
	today   func() time.Time
}

func (c *addCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	// The id is assigned only once the element is complete.
	h, err := c.builder.Build(0, c.today())
	if err != nil {
		return buildFailed(err)
	}
	id, err := c.m.AddNext(h)
	if err != nil {
		return buildFailed(err)
	}
	logging.Commands("Added element %d", id)
	return shell.OK(fmt.Sprintf("HumanBeing added with key %d!", id))
}

type insertCmd struct {
	base
	m       *collection.Manager
	builder *ElementBuilder
	today   func() time.Time
}

func (c *insertCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	key, resp, ok := c.key(args)
	if !ok {
		return resp
	}
	if _, exists := c.m.Get(key); exists {
		return shell.Fail("An element with this key already exists!")
	}
	h, err := c.builder.Build(key, c.today())
	if err != nil {
		return buildFailed(err)
	}
	if err := h.Validate(); err != nil {
		return buildFailed(err)
	}
	c.m.Put(key, h)
	logging.Commands("Inserted element %d", key)
	return shell.OK(fmt.Sprintf("HumanBeing inserted with key %d!", key))
}

type updateCmd struct {
	base
	m       *collection.Manager
	builder *ElementBuilder
}

func (c *updateCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	key, resp, ok := c.key(args)
	if !ok {
		return resp
	}
	old, exists := c.m.Get(key)
	if !exists {
		return shell.Fail("No element with this key exists!")
	}
	h, err := c.builder.Build(key, old.CreationDate)
	if err != nil {
		return buildFailed(err)
	}
	if err := h.Validate(); err != nil {
		return buildFailed(err)
	}
	if !c.m.Update(h) {
		return shell.Fail(fmt.Sprintf("Element %d disappeared during the update!", key))
	}
	logging.Commands("Updated element %d", key)
	return shell.OK(fmt.Sprintf("HumanBeing with key %d updated!", key))
}

type replaceIfGreaterCmd struct {
	base
	m       *collection.Manager
	builder *ElementBuilder
}

func (c *replaceIfGreaterCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	key, resp, ok := c.key(args)
	if !ok {
		return resp
	}
	old, exists := c.m.Get(key)
	if !exists {
		return shell.Fail("No element with this key exists!")
	}
	h, err := c.builder.Build(key, old.CreationDate)
	if err != nil {
		return buildFailed(err)
	}
	if err := h.Validate(); err != nil {
		return buildFailed(err)
	}
	if !h.Outranks(old) {
		return shell.Fail("The new value is not greater than the old one, nothing replaced.")
	}
	if !c.m.Update(h) {
		return shell.Fail(fmt.Sprintf("Element %d disappeared during the update!", key))
	}
	return shell.OK("Element replaced!")
}

type removeKeyCmd struct {
	base
	m *collection.Manager
}

func (c *removeKeyCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	key, resp, ok := c.key(args)
	if !ok {
		return resp
	}
	if !c.m.Remove(key) {
		return shell.Fail("No element with this key exists!")
	}
	return shell.OK(fmt.Sprintf("HumanBeing with key %d removed!", key))
}

// removeByKeyCmd removes every element whose key compares to the given key
// with the sign of dir.
type removeByKeyCmd struct {
	base
	m   *collection.Manager
	dir int
}

func (c *removeByKeyCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	key, resp, ok := c.key(args)
	if !ok {
		return resp
	}
	if _, exists := c.m.Get(key); !exists {
		return shell.Fail("No element with this key exists!")
	}
	removed := 0
	for _, h := range c.m.Values() {
		if (c.dir > 0 && h.ID > key) || (c.dir < 0 && h.ID < key) {
			if c.m.Remove(h.ID) {
				removed++
			}
		}
	}
	return shell.OK(fmt.Sprintf("Removed elements: %d", removed))
}

type clearCmd struct {
	base
	m *collection.Manager
}

func (c *clearCmd) Apply(_ context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	c.m.Clear()
	return shell.OK("Collection cleared!")
}

// =============================================================================
// PERSISTENCE
// =============================================================================

type loadCmd struct {
	base
	m *collection.Manager
}

func (c *loadCmd) Apply(ctx context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	if err := c.m.Load(ctx); err != nil {
		return shell.Fail(fmt.Sprintf("Failed to load the collection: %v", err))
	}
	return shell.OK("Collection reloaded!")
}

type saveCmd struct {
	base
	m *collection.Manager
}

func (c *saveCmd) Apply(ctx context.Context, args shell.Args) shell.Response {
	if args.Rest() != "" {
		return c.wrongArgs()
	}
	if err := c.m.Save(ctx); err != nil {
		return shell.Fail(fmt.Sprintf("Failed to save the collection: %v", err))
	}
	return shell.OK("Collection saved!")
}
