//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"syscall/js"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/config"
	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/provider"
	"github.com/inkdrift/inkdrift/internal/session"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/viewport"
)

// mu serializes every call into the session: JS callbacks and remote changes
// applied by the provider.
var (
	mu     sync.Mutex
	sess   *session.Session
	prov   *provider.Provider
	stop   context.CancelFunc
	picker = &jsPicker{}
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		cfg = &config.ClientConfig{}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// Create the board API object
	api := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	api.Set("open", js.FuncOf(open))
	api.Set("connect", js.FuncOf(connect))
	api.Set("close", js.FuncOf(closeBoard))
	api.Set("resize", js.FuncOf(resize))
	api.Set("setPicker", js.FuncOf(setPicker))
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("pointerLeave", js.FuncOf(pointerLeave))
	api.Set("wheel", js.FuncOf(wheel))
	api.Set("key", js.FuncOf(key))
	api.Set("setTool", js.FuncOf(setTool))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("copy", js.FuncOf(copySelection))
	api.Set("paste", js.FuncOf(paste))
	api.Set("deleteSelected", js.FuncOf(deleteSelected))
	api.Set("resetRoom", js.FuncOf(resetRoom))
	api.Set("frame", js.FuncOf(frame))

	// --- Queries (frontend ← backend) ---
	api.Set("render", js.FuncOf(render))
	api.Set("getStatus", js.FuncOf(getStatus))

	js.Global().Set("inkdrift", api)
	js.Global().Set("inkdriftWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

type jsPicker struct {
	fn js.Value
}

// Pick asks the renderer for the shape under a world point.
func (p *jsPicker) Pick(world geom.Point) (string, bool) {
	if p.fn.Type() != js.TypeFunction {
		return "", false
	}
	v := p.fn.Invoke(world.X, world.Y)
	if v.Type() != js.TypeString || v.String() == "" {
		return "", false
	}
	return v.String(), true
}

func ok() any { return js.ValueOf(map[string]any{"ok": true}) }

func fail(msg string) any { return js.ValueOf(map[string]any{"error": msg}) }

func point(args []js.Value, i int) geom.Point {
	return geom.Point{X: args[i].Float(), Y: args[i+1].Float()}
}

// withSession runs fn under mu when a board is open.
func withSession(fn func(s *session.Session) any) any {
	mu.Lock()
	defer mu.Unlock()
	if sess == nil {
		return fail("no board open")
	}
	return fn(sess)
}

// --- Command Handlers ---

// open(name, width, height) starts a local board.
func open(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return fail("usage: open(name, width, height)")
	}
	mu.Lock()
	defer mu.Unlock()
	if sess != nil {
		return fail("board already open")
	}
	cfg, err := config.LoadClient()
	if err != nil {
		cfg = &config.ClientConfig{}
	}
	doc := crdt.NewDoc("")
	sess = session.New(session.Options{
		Doc:                doc,
		Awareness:          awareness.New(doc.ClientID()),
		Picker:             picker,
		Name:               args[0].String(),
		Width:              args[1].Float(),
		Height:             args[2].Float(),
		ThrottleInterval:   cfg.SyncThrottle,
		UndoCaptureTimeout: cfg.UndoCaptureTimeout,
	})
	return ok()
}

// connect(url, token) joins the relay room at url.
func connect(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return fail("usage: connect(url, token)")
	}
	mu.Lock()
	defer mu.Unlock()
	if sess == nil {
		return fail("no board open")
	}
	if prov != nil {
		return fail("already connected")
	}
	token := ""
	if len(args) > 1 && args[1].Type() == js.TypeString {
		token = args[1].String()
	}

	var name string
	sess.Awareness().LocalState().Decode(awareness.FieldName, &name)
	prov = provider.New(provider.Options{
		URL:       args[0].String(),
		Token:     token,
		Name:      name,
		Doc:       sess.Replica().Doc(),
		Awareness: sess.Awareness(),
		Dispatch: func(fn func()) {
			mu.Lock()
			defer mu.Unlock()
			fn()
		},
		OnStatus: func(s provider.Status) {
			if cb := js.Global().Get("inkdrift").Get("onStatus"); cb.Type() == js.TypeFunction {
				cb.Invoke(string(s))
			}
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	stop = cancel
	go prov.Run(ctx)
	return ok()
}

func closeBoard(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	if sess == nil {
		return ok()
	}
	sess.Close()
	if stop != nil {
		stop()
	}
	sess, prov, stop = nil, nil, nil
	return ok()
}

func resize(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return nil
	}
	return withSession(func(s *session.Session) any {
		s.Camera().Resize(args[0].Float(), args[1].Float())
		return nil
	})
}

// setPicker(fn) installs fn(x, y) -> shapeId as the ray pick fallback.
func setPicker(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	if len(args) < 1 {
		picker.fn = js.Undefined()
		return nil
	}
	picker.fn = args[0]
	return nil
}

// pointerDown(x, y, button, shift)
func pointerDown(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return nil
	}
	return withSession(func(s *session.Session) any {
		s.PointerDown(point(args, 0), session.Button(args[2].Int()), args[3].Bool())
		return nil
	})
}

func pointerMove(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return nil
	}
	return withSession(func(s *session.Session) any {
		s.PointerMove(point(args, 0))
		return nil
	})
}

func pointerUp(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return nil
	}
	return withSession(func(s *session.Session) any {
		s.PointerUp(point(args, 0))
		return nil
	})
}

func pointerLeave(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any {
		s.PointerLeave()
		return nil
	})
}

// wheel(deltaY, ctrl, shift, x, y)
func wheel(this js.Value, args []js.Value) any {
	if len(args) < 5 {
		return nil
	}
	return withSession(func(s *session.Session) any {
		s.Wheel(args[0].Float(), args[1].Bool(), args[2].Bool(), point(args, 3))
		return nil
	})
}

// key(key, code, ctrl, shift) returns true when the board consumed the key.
func key(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return js.ValueOf(false)
	}
	return withSession(func(s *session.Session) any {
		return js.ValueOf(s.Key(session.KeyEvent{
			Key:   args[0].String(),
			Code:  args[1].String(),
			Ctrl:  args[2].Bool(),
			Shift: args[3].Bool(),
		}))
	})
}

func setTool(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	t := session.ToolName(args[0].String())
	if !t.Valid() {
		return fail("unknown tool " + string(t))
	}
	return withSession(func(s *session.Session) any {
		s.SetTool(t)
		return ok()
	})
}

func undo(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any { return js.ValueOf(s.Undo()) })
}

func redo(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any { return js.ValueOf(s.Redo()) })
}

func copySelection(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any { return js.ValueOf(s.Copy()) })
}

func paste(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any { return js.ValueOf(len(s.Paste())) })
}

func deleteSelected(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any {
		s.DeleteSelected()
		return nil
	})
}

func resetRoom(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any {
		s.ResetRoom()
		return nil
	})
}

// frame flushes throttled updates. Call it once per animation frame.
func frame(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any {
		s.Frame()
		return nil
	})
}

// --- Query Handlers ---

type cursorView struct {
	Pos   geom.Point `json:"pos"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
}

type sceneView struct {
	Shapes   json.RawMessage       `json:"shapes"`
	Drafts   json.RawMessage       `json:"drafts"`
	Box      any                   `json:"box,omitempty"`
	Locked   []string              `json:"locked"`
	Cursors  map[string]cursorView `json:"cursors"`
	Camera   viewport.State        `json:"camera"`
	Tool     session.ToolName      `json:"tool"`
	CanUndo  bool                  `json:"canUndo"`
	CanRedo  bool                  `json:"canRedo"`
	Selected []string              `json:"selected"`
}

// render returns the scene as JSON for the renderer.
func render(this js.Value, args []js.Value) any {
	return withSession(func(s *session.Session) any {
		shapes, err := shape.MarshalList(s.Shapes())
		if err != nil {
			return fail(err.Error())
		}
		drafts, err := shape.MarshalList(s.Drafts())
		if err != nil {
			return fail(err.Error())
		}
		view := sceneView{
			Shapes:   shapes,
			Drafts:   drafts,
			Cursors:  make(map[string]cursorView),
			Camera:   s.Camera().State(),
			Tool:     s.Tool(),
			CanUndo:  s.CanUndo(),
			CanRedo:  s.CanRedo(),
			Selected: s.Selection().IDs(),
		}
		if v, ok := s.Visual(); ok {
			view.Box = v
		}
		for id := range s.LockedShapeIDs() {
			view.Locked = append(view.Locked, id)
		}
		for id, c := range s.Awareness().RemoteCursors() {
			view.Cursors[id] = cursorView{Pos: c.Pos, Name: c.Name, Color: c.Color}
		}
		data, err := json.Marshal(view)
		if err != nil {
			return fail(err.Error())
		}
		return js.ValueOf(string(data))
	})
}

func getStatus(this js.Value, args []js.Value) any {
	mu.Lock()
	p := prov
	mu.Unlock()
	if p == nil {
		return js.ValueOf(map[string]any{"status": string(provider.StatusDisconnected), "peers": 0})
	}
	return js.ValueOf(map[string]any{
		"status": string(p.Status()),
		"synced": p.Synced(),
		"peers":  p.Peers(),
	})
}
