package web

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash"
	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gomeboy-web/internal/enginetest"
	"github.com/thelolagemann/gomeboy-web/internal/frontend"
	"github.com/thelolagemann/gomeboy-web/internal/lifecycle"
	"github.com/thelolagemann/gomeboy-web/internal/scheduler"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

type env struct {
	app  *frontend.App
	fake *enginetest.Engine
	hub  *hub
	srv  *httptest.Server
}

func setup(t *testing.T, ready bool) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	fake := &enginetest.Engine{}
	var constructed atomic.Int32
	app := frontend.New(frontend.Options{
		Factory: fake.Factory(&constructed),
		Refresh: scheduler.NewPulse(),
	})
	if ready {
		app.Ready(ctx)
		if err := app.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}

	h := newHub(ctx, app, log.NewNullLogger(), 4, maxUpload)
	go h.run()
	unwatch := app.Watch(func(frontend.View) { h.notify() })
	srv := httptest.NewServer(newServer(h))

	t.Cleanup(func() {
		srv.Close()
		unwatch()
		cancel()
		<-h.done
		app.Close()
	})
	return &env{app: app, fake: fake, hub: h, srv: srv}
}

func (e *env) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until one of type typ satisfies match.
func next(t *testing.T, conn *websocket.Conn, typ Type, match func(body []byte) bool) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for message %d: %v", typ, err)
		}
		if len(msg) > 0 && msg[0] == typ && (match == nil || match(msg[1:])) {
			return msg[1:]
		}
	}
}

func romLoaded(name string) func([]byte) bool {
	return func(body []byte) bool {
		var v frontend.View
		if err := json.Unmarshal(body, &v); err != nil {
			return false
		}
		return v.ROM != nil && v.ROM.Name == name
	}
}

func waitFrames(t *testing.T, conn *websocket.Conn, app *frontend.App, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for app.Status().Frames < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d frames, got %d", n, app.Status().Frames)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{Refresh}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCache(t *testing.T) {
	c := newCache(2)
	a := c.add("a.gb", []byte{1})
	if again := c.add("renamed.gb", []byte{1}); again != a {
		t.Fatal("expected identical data to share a checksum")
	}
	b := c.add("b.gb", []byte{2})
	c.add("c.gb", []byte{3})

	if _, _, ok := c.get(a); ok {
		t.Error("expected oldest entry to be evicted")
	}
	name, data, ok := c.get(b)
	if !ok || name != "b.gb" || !bytes.Equal(data, []byte{2}) {
		t.Errorf("unexpected entry %q %v %v", name, data, ok)
	}

	got := c.list()
	want := []CachedImage{
		{Name: "c.gb", Size: 1, Checksum: xxhash.Sum64([]byte{3})},
		{Name: "b.gb", Size: 1, Checksum: b},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if empty := newCache(0); len(empty.list()) != 0 {
		t.Error("expected disabled cache to stay empty")
	}
}

func TestServer_Status(t *testing.T) {
	e := setup(t, false)

	resp, err := http.Get(e.srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v frontend.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Message != lifecycle.NotReadyMessage || v.State != "NotReady" {
		t.Errorf("unexpected view %+v", v)
	}

	page, err := http.Get(e.srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page.Body.Close()
	if page.StatusCode != http.StatusOK || !strings.HasPrefix(page.Header.Get("Content-Type"), "text/html") {
		t.Errorf("unexpected index response %d %q", page.StatusCode, page.Header.Get("Content-Type"))
	}
}

func TestHub_UploadAndRefresh(t *testing.T) {
	e := setup(t, true)
	conn := e.dial(t)

	if id := next(t, conn, ClientInfo, nil); len(id) != 1 || id[0] == 0 {
		t.Fatalf("unexpected client info %v", id)
	}

	msg := append([]byte{Upload}, "rom.bin"...)
	msg = append(msg, 0)
	msg = append(msg, 0xAA, 0xBB, 0xCC)
	if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		t.Fatal(err)
	}
	next(t, conn, ViewUpdate, romLoaded("rom.bin"))

	waitFrames(t, conn, e.app, 3)

	calls := e.fake.Calls()
	if len(calls) < 5 || calls[0].Op != "init" || calls[1].Op != "load" {
		t.Fatalf("unexpected calls %v", calls)
	}
	if !bytes.Equal(calls[1].Data, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("unexpected rom % x", calls[1].Data)
	}
	if e.fake.Overlaps() != 0 {
		t.Error("engine calls overlapped")
	}

	resp, err := http.Get(e.srv.URL + "/roms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var cached []CachedImage
	if err := json.NewDecoder(resp.Body).Decode(&cached); err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 || cached[0].Name != "rom.bin" || cached[0].Size != 3 {
		t.Errorf("unexpected cached images %+v", cached)
	}
}

func TestHub_Reload(t *testing.T) {
	e := setup(t, true)
	rom := []byte{0x01, 0x02}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("rom", "tetris.gb")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(rom)
	form.Close()

	resp, err := http.Post(e.srv.URL+"/rom", form.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	var v frontend.View
	json.NewDecoder(resp.Body).Decode(&v)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || v.ROM == nil || v.ROM.Name != "tetris.gb" {
		t.Fatalf("unexpected upload response %d %+v", resp.StatusCode, v)
	}

	conn := e.dial(t)
	next(t, conn, ClientInfo, nil)

	reload := binary.LittleEndian.AppendUint64([]byte{Reload}, xxhash.Sum64(rom))
	if err := conn.WriteMessage(websocket.BinaryMessage, reload); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		var loads int
		for _, c := range e.fake.Calls() {
			if c.Op == "load" {
				loads++
			}
		}
		if loads == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected two loads, got %v", e.fake.Ops())
		}
		time.Sleep(time.Millisecond)
	}

	missing := binary.LittleEndian.AppendUint64([]byte{Reload}, 42)
	if err := conn.WriteMessage(websocket.BinaryMessage, missing); err != nil {
		t.Fatal(err)
	}
	if errMsg := next(t, conn, ClientError, nil); !strings.Contains(string(errMsg), "no cached image") {
		t.Errorf("unexpected error message %q", errMsg)
	}
}

func postROM(t *testing.T, url, name string, rom []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("rom", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(rom)
	form.Close()

	resp, err := http.Post(url+"/rom", form.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func TestHub_RejectedUploadNotCached(t *testing.T) {
	e := setup(t, true)
	e.fake.LoadErr = errors.New("bad header")

	if resp := postROM(t, e.srv.URL, "bad.gb", []byte{0x0B}); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected rejected upload, got status %d", resp.StatusCode)
	}

	conn := e.dial(t)
	next(t, conn, ClientInfo, nil)
	msg := append([]byte{Upload}, "worse.gb"...)
	msg = append(msg, 0, 0x0C)
	if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		t.Fatal(err)
	}
	if errMsg := next(t, conn, ClientError, nil); !strings.Contains(string(errMsg), "bad header") {
		t.Errorf("unexpected error message %q", errMsg)
	}

	if cached := e.hub.cache.list(); len(cached) != 0 {
		t.Errorf("expected rejected images to stay out of the cache, got %+v", cached)
	}
}

func TestServer_EmptySelection(t *testing.T) {
	e := setup(t, true)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	form.WriteField("note", "nothing selected")
	form.Close()

	resp, err := http.Post(e.srv.URL+"/rom", form.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if ops := e.fake.Ops(); len(ops) != 0 {
		t.Errorf("expected no engine calls, got %v", ops)
	}
}

func TestDriver_StartStop(t *testing.T) {
	fake := &enginetest.Engine{}
	var constructed atomic.Int32
	app := frontend.New(frontend.Options{
		Factory: fake.Factory(&constructed),
		Refresh: scheduler.NewPulse(),
	})
	defer app.Close()

	d := &Driver{Addr: "127.0.0.1:0", CacheSize: 2}
	d.Initialize(app, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- d.Start(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	addr, err := d.ListenAddr(waitCtx)
	if err != nil {
		t.Fatal(err)
	}

	// the driver bootstraps the engine when it starts
	if err := app.Wait(waitCtx); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get("http://" + addr.String() + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var v frontend.View
	json.NewDecoder(resp.Body).Decode(&v)
	resp.Body.Close()
	if v.State != "Ready" || v.Message != "Hello, gomeboy-web!" {
		t.Errorf("unexpected view %+v", v)
	}

	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("unexpected start error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}
