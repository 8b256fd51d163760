// A smoke client for the bridge WebSocket endpoint. It walks one offer round
// trip: init a peer connection, create and attach a local track, create an
// offer and apply it locally, then close everything down.
package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type frame struct {
	ID     string                 `json:"id,omitempty"`
	Method string                 `json:"method,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`

	Event   string                 `json:"event,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Result  interface{}            `json:"result,omitempty"`
	Error   map[string]interface{} `json:"error,omitempty"`
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws://localhost:8082/v1/bridge/ws", nil)
	if err != nil {
		log.Fatalf("could not dial bridge: %v", err)
	}
	defer c.Close(websocket.StatusInternalError, "")

	nextID := 0
	call := func(method string, params map[string]interface{}) interface{} {
		nextID++
		id := strconv.Itoa(nextID)
		if err := wsjson.Write(ctx, c, &frame{ID: id, Method: method, Params: params}); err != nil {
			log.Fatalf("could not send %s: %v", method, err)
		}
		// Events interleave with responses on the same socket.
		for {
			var f frame
			if err := wsjson.Read(ctx, c, &f); err != nil {
				log.Fatalf("could not read reply to %s: %v", method, err)
			}
			if f.Event != "" {
				fmt.Printf("event: %s %v\n", f.Event, f.Payload)
				continue
			}
			if f.ID != id {
				continue
			}
			if f.Error != nil {
				log.Fatalf("%s failed: %v", method, f.Error)
			}
			return f.Result
		}
	}

	tagOf := func(v interface{}) string {
		m, ok := v.(map[string]interface{})
		if !ok {
			log.Fatalf("result is not a map: %v", v)
		}
		tag, _ := m["valueTag"].(string)
		return tag
	}

	pcTag := tagOf(call("peerConnectionInit", map[string]interface{}{
		"configuration": map[string]interface{}{
			"iceServers": []interface{}{
				map[string]interface{}{"urls": []interface{}{"stun:stun.l.google.com:19302"}},
			},
		},
	}))
	fmt.Println("peer connection:", pcTag)

	trackTag := tagOf(call("createTrack", map[string]interface{}{"kind": "video"}))
	fmt.Println("track:", trackTag)

	sender := call("peerConnectionAddTrack", map[string]interface{}{
		"valueTag":      pcTag,
		"trackValueTag": trackTag,
		"streamIds":     []interface{}{"smoke"},
	})
	fmt.Println("sender:", sender)

	offer := call("peerConnectionCreateOffer", map[string]interface{}{"valueTag": pcTag})
	fmt.Println("offer type:", offer.(map[string]interface{})["type"])

	call("peerConnectionSetLocalDescription", map[string]interface{}{
		"valueTag": pcTag,
		"sdp":      offer,
	})
	fmt.Println("local description applied")

	state := call("peerConnectionSignalingState", map[string]interface{}{"valueTag": pcTag})
	fmt.Println("signaling state:", state)

	call("peerConnectionClose", map[string]interface{}{"valueTag": pcTag})
	call("finishLoading", nil)
	fmt.Println("done")

	c.Close(websocket.StatusNormalClosure, "")
}
