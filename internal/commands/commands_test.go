package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heroshell/internal/collection"
	"heroshell/internal/shell"
)

// scriptedPrompter answers Ask from a fixed list of lines.
type scriptedPrompter struct {
	answers []string
	asked   []string
	notes   []string
	warns   []string
}

func (p *scriptedPrompter) Ask(message string) (string, error) {
	p.asked = append(p.asked, message)
	if len(p.answers) == 0 {
		return "", shell.ErrEndOfInput
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Note(message string) { p.notes = append(p.notes, message) }
func (p *scriptedPrompter) Warn(message string) { p.warns = append(p.warns, message) }

func (p *scriptedPrompter) feed(lines ...string) { p.answers = append(p.answers, lines...) }

type memPersister struct {
	items  []*collection.HumanBeing
	stored []*collection.HumanBeing
	err    error
}

func (m *memPersister) Load(context.Context) ([]*collection.HumanBeing, error) {
	return m.items, m.err
}

func (m *memPersister) Store(_ context.Context, items []*collection.HumanBeing) error {
	if m.err != nil {
		return m.err
	}
	m.stored = items
	return nil
}

func ptr[T any](v T) *T { return &v }

var (
	created = time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC)
	today   = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
)

func hero(id int, name string, speed float32, weapon collection.WeaponType, car string) *collection.HumanBeing {
	h := &collection.HumanBeing{
		ID:             id,
		Name:           name,
		Coordinates:    collection.Coordinates{X: 1},
		CreationDate:   created,
		ImpactSpeed:    speed,
		SoundtrackName: "theme",
		WeaponType:     weapon,
	}
	if car != "" {
		h.Car = &collection.Car{Name: car}
	}
	return h
}

// element is a complete answer sequence for one HumanBeing.
func element(name, speed string) []string {
	return []string{name, "10", "", "1", "", speed, "song", "", "2", "2"}
}

type fixture struct {
	m       *collection.Manager
	store   *memPersister
	p       *scriptedPrompter
	reg     *shell.Registry
	history *shell.History
}

func newFixture(t *testing.T, items ...*collection.HumanBeing) *fixture {
	t.Helper()

	f := &fixture{
		store:   &memPersister{items: items},
		p:       &scriptedPrompter{},
		reg:     shell.NewRegistry(),
		history: &shell.History{},
	}
	f.m = collection.NewManager(f.store)
	require.NoError(t, f.m.Load(context.Background()))

	Register(Env{
		Collection: f.m,
		Prompter:   f.p,
		Registry:   f.reg,
		History:    f.history,
		Today:      func() time.Time { return today },
	})
	return f
}

func (f *fixture) run(t *testing.T, line string) shell.Response {
	t.Helper()
	args := shell.ParseLine(line)
	cmd, ok := f.reg.Lookup(args.Name())
	require.True(t, ok, "command %q not registered", args.Name())
	return cmd.Apply(context.Background(), args)
}

// =============================================================================
// ELEMENT BUILDER
// =============================================================================

func TestElementBuilder_RetriesInvalidValues(t *testing.T) {
	p := &scriptedPrompter{}
	p.feed(
		"", "Ivan", // name
		"-167", "5", // x
		"oops", "2.5", // y
		"1",          // realHero
		"",           // hasToothpick
		"abc", "7.5", // impactSpeed
		"song",       // soundtrack
		"-1", "2",    // minutes
		"knife",      // weapon
		"3", "1", "bmw", // car
	)

	h, err := NewElementBuilder(p).Build(4, created)
	require.NoError(t, err)

	assert.Equal(t, 4, h.ID)
	assert.Equal(t, "Ivan", h.Name)
	assert.Equal(t, int64(5), h.Coordinates.X)
	assert.Equal(t, ptr(float32(2.5)), h.Coordinates.Y)
	assert.Equal(t, ptr(true), h.RealHero)
	assert.Nil(t, h.HasToothpick)
	assert.Equal(t, float32(7.5), h.ImpactSpeed)
	assert.Equal(t, ptr(2.0), h.MinutesOfWaiting)
	assert.Equal(t, collection.Knife, h.WeaponType)
	assert.Equal(t, &collection.Car{Name: "bmw"}, h.Car)
	assert.Equal(t, created, h.CreationDate)
	assert.NoError(t, h.Validate())

	assert.Len(t, p.warns, 6)
	assert.Empty(t, p.answers)
}

func TestElementBuilder_WeaponByNumber(t *testing.T) {
	p := &scriptedPrompter{}
	p.feed("n", "0", "", "", "", "1", "s", "", "0", "1", "2")

	h, err := NewElementBuilder(p).Build(1, created)
	require.NoError(t, err)
	assert.Equal(t, collection.Hammer, h.WeaponType)
	assert.Nil(t, h.Car)
	assert.Len(t, p.warns, 1)
}

func TestElementBuilder_InputExhausted(t *testing.T) {
	p := &scriptedPrompter{}
	p.feed("Ivan", "5")

	_, err := NewElementBuilder(p).Build(1, created)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInputExhausted)
	assert.ErrorIs(t, err, shell.ErrEndOfInput)
}

// =============================================================================
// REGISTRATION AND ARGUMENTS
// =============================================================================

func TestRegister_Order(t *testing.T) {
	f := newFixture(t)

	var names []string
	for _, e := range f.reg.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"help", "add", "load", "info", "show", "insert", "update", "remove_key",
		"clear", "save", "execute_script", "exit", "remove_greater", "remove_lower",
		"replace_if_greater", "sum_of_impact_speed", "filter_less_than_car",
		"print_field_descending_weapon_type", "command_history", "show_command_history",
	}, names)
}

func TestZeroArgCommands_RejectArguments(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"help", "add", "load", "info", "show", "clear", "save", "exit",
		"sum_of_impact_speed", "print_field_descending_weapon_type", "command_history", "show_command_history"} {
		t.Run(name, func(t *testing.T) {
			cmd, ok := f.reg.Lookup(name)
			require.True(t, ok)

			resp := f.run(t, name+" extra")
			assert.Equal(t, shell.StatusFailed, resp.Status)
			assert.Equal(t, "Wrong number of arguments!\nUsage: '"+cmd.Usage()+"'", resp.Message)
		})
	}
}

func TestKeyCommands_RejectBadKeys(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	for _, name := range []string{"insert", "update", "remove_key", "remove_greater", "remove_lower", "replace_if_greater"} {
		t.Run(name, func(t *testing.T) {
			resp := f.run(t, name)
			assert.False(t, resp.Success())
			assert.True(t, strings.HasPrefix(resp.Message, "Key must be specified!"), resp.Message)

			for _, bad := range []string{"abc", "0", "-3", "1.5"} {
				resp = f.run(t, name+" "+bad)
				assert.Equal(t, shell.Fail("Key must be a natural number greater than 0!"), resp)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	resp := f.run(t, "help")
	require.True(t, resp.Success())

	lines := strings.Split(resp.Message, "\n")
	assert.Len(t, lines, len(f.reg.Entries()))
	assert.Contains(t, lines[0], "help")
	assert.Contains(t, resp.Message, "execute_script <file_name>")
	assert.Contains(t, resp.Message, "insert <key> {element}")
}

// =============================================================================
// MUTATIONS
// =============================================================================

func TestAdd(t *testing.T) {
	f := newFixture(t, hero(3, "c", 1, collection.Axe, ""))
	f.p.feed(element("Ivan", "4")...)

	resp := f.run(t, "add")
	require.Equal(t, shell.OK("HumanBeing added with key 4!"), resp)

	h, ok := f.m.Get(4)
	require.True(t, ok)
	assert.Equal(t, "Ivan", h.Name)
	assert.Equal(t, today, h.CreationDate)
}

func TestAdd_InputExhausted(t *testing.T) {
	f := newFixture(t)
	f.p.feed("Ivan")

	resp := f.run(t, "add")
	assert.False(t, resp.Success())
	assert.Contains(t, resp.Message, "Creation aborted")
	assert.Equal(t, 0, f.m.Len())

	f.p.feed(element("Ivan", "4")...)
	resp = f.run(t, "add")
	assert.Equal(t, shell.OK("HumanBeing added with key 1!"), resp)
}

func TestInsert(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	resp := f.run(t, "insert 1")
	assert.Equal(t, shell.Fail("An element with this key already exists!"), resp)
	assert.Empty(t, f.p.asked)

	f.p.feed(element("Olga", "3")...)
	resp = f.run(t, "insert 10")
	require.Equal(t, shell.OK("HumanBeing inserted with key 10!"), resp)

	h, ok := f.m.Get(10)
	require.True(t, ok)
	assert.Equal(t, 10, h.ID)
	assert.Equal(t, 11, f.m.NextID())
}

func TestUpdate_KeepsCreationDate(t *testing.T) {
	f := newFixture(t, hero(2, "b", 1, collection.Axe, ""))

	resp := f.run(t, "update 5")
	assert.Equal(t, shell.Fail("No element with this key exists!"), resp)

	f.p.feed(element("Boris", "9")...)
	resp = f.run(t, "update 2")
	require.Equal(t, shell.OK("HumanBeing with key 2 updated!"), resp)

	h, _ := f.m.Get(2)
	assert.Equal(t, "Boris", h.Name)
	assert.Equal(t, created, h.CreationDate)
}

func TestReplaceIfGreater(t *testing.T) {
	f := newFixture(t, hero(1, "m", 5, collection.Axe, ""))

	f.p.feed(element("a", "4")...)
	resp := f.run(t, "replace_if_greater 1")
	assert.False(t, resp.Success())
	h, _ := f.m.Get(1)
	assert.Equal(t, "m", h.Name)

	f.p.feed(element("a", "6")...)
	resp = f.run(t, "replace_if_greater 1")
	assert.Equal(t, shell.OK("Element replaced!"), resp)
	h, _ = f.m.Get(1)
	assert.Equal(t, "a", h.Name)
	assert.Equal(t, 1, h.ID)
	assert.Equal(t, created, h.CreationDate)

	// A later name is enough even when the new element is slower.
	f.p.feed(element("z", "1")...)
	resp = f.run(t, "replace_if_greater 1")
	assert.Equal(t, shell.OK("Element replaced!"), resp)
	h, _ = f.m.Get(1)
	assert.Equal(t, "z", h.Name)
}

func TestRemoveKey(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	assert.Equal(t, shell.OK("HumanBeing with key 1 removed!"), f.run(t, "remove_key 1"))
	assert.Equal(t, shell.Fail("No element with this key exists!"), f.run(t, "remove_key 1"))
}

func TestRemoveGreaterAndLower(t *testing.T) {
	var items []*collection.HumanBeing
	for id := 1; id <= 6; id++ {
		items = append(items, hero(id, "h", 1, collection.Axe, ""))
	}
	f := newFixture(t, items...)

	assert.Equal(t, shell.Fail("No element with this key exists!"), f.run(t, "remove_greater 9"))
	assert.Equal(t, shell.OK("Removed elements: 2"), f.run(t, "remove_greater 4"))
	assert.Equal(t, shell.OK("Removed elements: 2"), f.run(t, "remove_lower 3"))
	assert.Equal(t, shell.OK("Removed elements: 0"), f.run(t, "remove_lower 3"))

	var ids []int
	for _, h := range f.m.Values() {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []int{3, 4}, ids)
}

func TestClear(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	assert.Equal(t, shell.OK("Collection cleared!"), f.run(t, "clear"))
	assert.Equal(t, 0, f.m.Len())
	assert.Equal(t, shell.OK("Collection is empty!"), f.run(t, "show"))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestSumOfImpactSpeed(t *testing.T) {
	f := newFixture(t,
		hero(1, "a", 1.5, collection.Axe, ""),
		hero(2, "b", 2.25, collection.Axe, ""),
	)
	assert.Equal(t, shell.OK("Sum of impactSpeed over all elements: 3.75"), f.run(t, "sum_of_impact_speed"))
}

func TestFilterLessThanCar(t *testing.T) {
	f := newFixture(t,
		hero(1, "a", 1, collection.Axe, "audi"),
		hero(2, "b", 1, collection.Axe, "volvo"),
		hero(3, "c", 1, collection.Axe, ""),
	)

	resp := f.run(t, "filter_less_than_car bmw")
	require.True(t, resp.Success())
	assert.Contains(t, resp.Message, `"name": "a"`)
	assert.NotContains(t, resp.Message, `"name": "b"`)
	assert.NotContains(t, resp.Message, `"name": "c"`)

	resp = f.run(t, "filter_less_than_car aaa")
	assert.Equal(t, shell.OK("No elements with a car less than aaa"), resp)

	assert.False(t, f.run(t, "filter_less_than_car").Success())
}

func TestPrintFieldDescendingWeaponType(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, shell.OK("The collection has no elements with a weaponType!"), f.run(t, "print_field_descending_weapon_type"))

	f = newFixture(t,
		hero(1, "a", 1, collection.Axe, ""),
		hero(2, "b", 1, collection.Knife, ""),
		hero(3, "c", 1, collection.Hammer, ""),
		hero(4, "d", 1, collection.Knife, ""),
	)
	assert.Equal(t, shell.OK("KNIFE\nKNIFE\nAXE\nHAMMER"), f.run(t, "print_field_descending_weapon_type"))
}

func TestInfo(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	resp := f.run(t, "info")
	require.True(t, resp.Success())
	assert.Contains(t, resp.Message, "Elements: 1")
	assert.Contains(t, resp.Message, "no save in this session yet")
	assert.NotContains(t, resp.Message, "no load in this session yet")
}

func TestCommandHistory(t *testing.T) {
	f := newFixture(t)
	f.history.Record("help")
	f.history.Record("show")

	assert.Equal(t, shell.OK("Executed commands:\n1. help\n2. show"), f.run(t, "command_history"))
	assert.Equal(t, shell.OK("Executed commands:\n1. help\n2. show"), f.run(t, "show_command_history"))
}

func TestExitAndExecuteScript(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.run(t, "exit").Terminates())
	assert.Equal(t, shell.OK("Executing script 'a.txt'..."), f.run(t, "execute_script a.txt"))
	assert.Equal(t, shell.Fail("Wrong number of arguments!\nUsage: 'execute_script <file_name>'"), f.run(t, "execute_script"))
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestSaveAndLoad(t *testing.T) {
	f := newFixture(t, hero(1, "a", 1, collection.Axe, ""))

	require.Equal(t, shell.OK("Collection saved!"), f.run(t, "save"))
	assert.Len(t, f.store.stored, 1)

	f.store.items = nil
	require.Equal(t, shell.OK("Collection reloaded!"), f.run(t, "load"))
	assert.Equal(t, 0, f.m.Len())

	f.store.err = errors.New("disk on fire")
	assert.False(t, f.run(t, "save").Success())
	assert.False(t, f.run(t, "load").Success())
}

// =============================================================================
// THROUGH THE SHELL
// =============================================================================

func TestScriptSuppliesElementFields(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fill.txt")
	body := "add\n" + strings.Join(element("Ivan", "4"), "\n") + "\nsum_of_impact_speed\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0644))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	console := shell.NewConsole(strings.NewReader("execute_script "+script+"\nexit\n"), out, errOut, shell.ConsoleOptions{})
	reg := shell.NewRegistry()
	m := collection.NewManager(&memPersister{})
	sh := shell.New(console, reg, nil, shell.Options{})

	Register(Env{
		Collection: m,
		Prompter:   console,
		Registry:   reg,
		History:    sh.History(),
		Today:      func() time.Time { return today },
	})

	require.NoError(t, sh.Run(context.Background()))

	assert.Equal(t, 1, m.Len())
	assert.Contains(t, out.String(), "HumanBeing added with key 1!")
	assert.Contains(t, out.String(), "Sum of impactSpeed over all elements: 4")
	assert.NotContains(t, out.String(), "Enter name")
	assert.Empty(t, errOut.String())
	assert.Equal(t, []string{"execute_script", "add", "sum_of_impact_speed", "exit"}, sh.History().Entries())
}

func TestInteractiveAddShowsPrompts(t *testing.T) {
	input := "add\n" + strings.Join(element("Ivan", "4"), "\n") + "\nexit\n"
	out := &bytes.Buffer{}
	console := shell.NewConsole(strings.NewReader(input), out, &bytes.Buffer{}, shell.ConsoleOptions{})
	reg := shell.NewRegistry()
	m := collection.NewManager(&memPersister{})
	sh := shell.New(console, reg, nil, shell.Options{})

	Register(Env{Collection: m, Prompter: console, Registry: reg, History: sh.History()})

	require.NoError(t, sh.Run(context.Background()))
	assert.Contains(t, out.String(), "Enter name (name)")
	assert.Contains(t, out.String(), "Create a car?")
	assert.Equal(t, 1, m.Len())
}
