package dump

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heroshell/internal/collection"
	"heroshell/internal/transport"
)

func ptr[T any](v T) *T { return &v }

func fixture() []*collection.HumanBeing {
	date := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	return []*collection.HumanBeing{
		{
			ID:               1,
			Name:             "Ada",
			Coordinates:      collection.Coordinates{X: -166, Y: ptr(float32(3.25))},
			CreationDate:     date,
			RealHero:         ptr(true),
			HasToothpick:     ptr(false),
			ImpactSpeed:      12.5,
			SoundtrackName:   "Overture",
			MinutesOfWaiting: ptr(2.71),
			WeaponType:       collection.Knife,
			Car:              &collection.Car{Name: "Volga"},
		},
		{
			ID:             7,
			Name:           "Bo & <Co>",
			Coordinates:    collection.Coordinates{X: 314},
			CreationDate:   date,
			ImpactSpeed:    -1,
			SoundtrackName: "Quiet",
			WeaponType:     collection.Hammer,
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	data, err := Encode(fixture())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
	assert.Contains(t, string(data), `<humanBeing id="7">`)
	assert.Contains(t, string(data), "<minutesOfWaiting></minutesOfWaiting>")

	got, bad, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, bad)
	if diff := cmp.Diff(fixture(), got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Empty(t *testing.T) {
	got, bad, err := Decode([]byte("  \n"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, bad)
}

func TestDecode_MalformedDocument(t *testing.T) {
	_, _, err := Decode([]byte("<humanBeings><humanBeing>"))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestDecode_SkipsBadElements(t *testing.T) {
	doc := `<humanBeings>
  <humanBeing id="x"><name>a</name></humanBeing>
  <humanBeing id="2"><name>b</name><coordinates><x>1</x><y></y></coordinates>
    <creationDate>2024-01-01</creationDate><realHero>maybe</realHero><hasToothpick></hasToothpick>
    <impactSpeed>1</impactSpeed><soundtrackName>s</soundtrackName><minutesOfWaiting></minutesOfWaiting>
    <weaponType>AXE</weaponType><car><name></name></car></humanBeing>
  <humanBeing id="3"><name></name><coordinates><x>1</x><y></y></coordinates>
    <creationDate>2024-01-01</creationDate><realHero></realHero><hasToothpick></hasToothpick>
    <impactSpeed>1</impactSpeed><soundtrackName>s</soundtrackName><minutesOfWaiting></minutesOfWaiting>
    <weaponType>AXE</weaponType><car><name></name></car></humanBeing>
  <humanBeing id="4"><name>d</name><coordinates><x>1</x><y></y></coordinates>
    <creationDate>2024-01-01</creationDate><realHero></realHero><hasToothpick></hasToothpick>
    <impactSpeed>1</impactSpeed><soundtrackName>s</soundtrackName><minutesOfWaiting></minutesOfWaiting>
    <weaponType>AXE</weaponType><car><name></name></car></humanBeing>
</humanBeings>`

	got, bad, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].ID)
	assert.Nil(t, got[0].Car)
	assert.Nil(t, got[0].RealHero)

	require.Len(t, bad, 3)
	var ee *ElementError
	require.True(t, errors.As(bad[2], &ee))
	assert.Equal(t, "3", ee.ID)
	assert.ErrorIs(t, bad[2], collection.ErrInvalidElement)
}

func TestFileDumper(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dump.xml")
	d := NewFileDumper(path)

	data, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	status, err := d.Write(ctx, []byte("<humanBeings/>"))
	require.NoError(t, err)
	assert.Contains(t, status, path)

	data, err = d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<humanBeings/>", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

type fakeExchanger struct {
	requests []transport.Request
	reply    func(req transport.Request) (transport.Response, error)
}

func (f *fakeExchanger) Exchange(_ context.Context, req transport.Request) (transport.Response, error) {
	f.requests = append(f.requests, req)
	return f.reply(req)
}

func TestRemoteDumper(t *testing.T) {
	ctx := context.Background()
	stored := ""
	ex := &fakeExchanger{reply: func(req transport.Request) (transport.Response, error) {
		switch req.Kind {
		case transport.KindSaveDump:
			stored = req.Data
			return req.Reply("saved"), nil
		case transport.KindGetDump:
			return req.Reply(stored), nil
		}
		return req.Fail("unknown"), nil
	}}
	d := NewRemoteDumper(ex)

	data, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	status, err := d.Write(ctx, []byte("<humanBeings/>"))
	require.NoError(t, err)
	assert.Equal(t, "saved", status)

	data, err = d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<humanBeings/>", string(data))
	assert.Len(t, ex.requests, 3)
}

func TestRemoteDumper_Errors(t *testing.T) {
	ctx := context.Background()

	refused := NewRemoteDumper(&fakeExchanger{reply: func(req transport.Request) (transport.Response, error) {
		return req.Fail("disk full"), nil
	}})
	_, err := refused.Write(ctx, []byte("x"))
	assert.ErrorContains(t, err, "disk full")

	silent := NewRemoteDumper(&fakeExchanger{reply: func(transport.Request) (transport.Response, error) {
		return transport.Response{}, transport.ErrNoResponse
	}})
	_, err = silent.Read(ctx)
	assert.ErrorIs(t, err, transport.ErrNoResponse)
}

func TestOpen(t *testing.T) {
	d, err := Open("data/dump.xml", transport.ClientOptions{})
	require.NoError(t, err)
	assert.IsType(t, &FileDumper{}, d)

	d, err = Open("udp://127.0.0.1:1448", transport.ClientOptions{})
	require.NoError(t, err)
	assert.IsType(t, &RemoteDumper{}, d)

	_, err = Open("udp://nohostport", transport.ClientOptions{})
	assert.Error(t, err)
}

func TestRepository_WithManager(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dump.xml")
	repo := NewRepository(NewFileDumper(path))

	m := collection.NewManager(repo)
	for _, h := range fixture() {
		require.True(t, m.Add(h))
	}
	require.NoError(t, m.Save(ctx))
	assert.Contains(t, repo.LastStatus, path)

	reloaded := collection.NewManager(NewRepository(NewFileDumper(path)))
	require.NoError(t, reloaded.Load(ctx))
	if diff := cmp.Diff(fixture(), reloaded.Values()); diff != "" {
		t.Errorf("reloaded mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 8, reloaded.NextID())
}
