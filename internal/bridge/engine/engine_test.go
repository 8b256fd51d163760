package engine

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/observe"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.Nop()
	e, err := New(&logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewLocalTrack(t *testing.T) {
	e := newTestEngine(t)

	t.Run("video", func(t *testing.T) {
		track, err := e.NewLocalTrack("video")
		if err != nil {
			t.Fatalf("NewLocalTrack: %v", err)
		}
		if track.Kind() != "video" {
			t.Errorf("Kind() = %q, want video", track.Kind())
		}
		if !track.Enabled() {
			t.Error("new track is disabled")
		}
		if track.State() != rtc.TrackStateLive {
			t.Errorf("State() = %v, want live", track.State())
		}
	})

	t.Run("audio", func(t *testing.T) {
		track, err := e.NewLocalTrack("audio")
		if err != nil {
			t.Fatalf("NewLocalTrack: %v", err)
		}
		if track.Kind() != "audio" {
			t.Errorf("Kind() = %q, want audio", track.Kind())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := e.NewLocalTrack("data"); err == nil {
			t.Error("NewLocalTrack(data) accepted an unknown kind")
		}
	})

	t.Run("enabled toggles", func(t *testing.T) {
		track, err := e.NewLocalTrack("video")
		if err != nil {
			t.Fatalf("NewLocalTrack: %v", err)
		}
		track.SetEnabled(false)
		if track.Enabled() {
			t.Error("track still enabled")
		}
	})
}

func TestOfferLifecycle(t *testing.T) {
	e := newTestEngine(t)
	pc, err := e.NewPeerConnection(rtc.Configuration{KeyType: rtc.KeyTypeECDSA})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	track, err := e.NewLocalTrack("video")
	if err != nil {
		t.Fatalf("NewLocalTrack: %v", err)
	}
	sender, err := pc.AddTrack(track, []string{"stream"})
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if sender.ID() == "" {
		t.Error("sender has no id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	observer := observe.NewCreate(errs.CreateOfferFailed)
	pc.CreateOffer(nil, observer)
	offer, err := observer.Await(ctx)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.SDP == "" {
		t.Error("offer has no sdp")
	}

	setObserver := observe.NewSet(errs.SetLocalDescriptionFailed)
	pc.SetLocalDescription(offer, setObserver)
	if err := setObserver.Await(ctx); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}

	params := sender.Parameters()
	if len(params.Encodings) == 0 {
		t.Error("sender reports no encodings")
	}
	if params.TransactionID == "" {
		t.Error("no transaction id synthesized")
	}
}

func TestSenderParametersRetainOverrides(t *testing.T) {
	e := newTestEngine(t)
	pc, err := e.NewPeerConnection(rtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	track, err := e.NewLocalTrack("video")
	if err != nil {
		t.Fatalf("NewLocalTrack: %v", err)
	}
	sender, err := pc.AddTrack(track, nil)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	params := sender.Parameters()
	if len(params.Encodings) == 0 {
		t.Fatal("no encodings to mutate")
	}
	max := 300_000
	params.Encodings[0].Active = false
	params.Encodings[0].MaxBitrate = &max
	if err := sender.SetParameters(params); err != nil {
		t.Fatalf("SetParameters: %v", err)
	}

	fresh := sender.Parameters()
	if fresh.Encodings[0].Active {
		t.Error("Active override lost on a fresh snapshot")
	}
	if fresh.Encodings[0].MaxBitrate == nil || *fresh.Encodings[0].MaxBitrate != 300_000 {
		t.Errorf("MaxBitrate = %v, want 300000", fresh.Encodings[0].MaxBitrate)
	}
}

func TestWrapSenderIsStable(t *testing.T) {
	e := newTestEngine(t)
	pc, err := e.NewPeerConnection(rtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	transceiver, err := pc.AddTransceiver("video", webrtc.RTPTransceiverDirectionSendrecv)
	if err != nil {
		t.Fatalf("AddTransceiver: %v", err)
	}
	first := transceiver.Sender()
	second := transceiver.Sender()
	if first.ID() != second.ID() {
		t.Errorf("sender ids differ across lookups: %q vs %q", first.ID(), second.ID())
	}
	if transceiver.Receiver().ID() != transceiver.Receiver().ID() {
		t.Error("receiver ids differ across lookups")
	}
}

func TestParseFmtp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "minptime=10", map[string]string{"minptime": "10"}},
		{
			"multiple",
			"level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			map[string]string{
				"level-asymmetry-allowed": "1",
				"packetization-mode":      "1",
				"profile-level-id":        "42001f",
			},
		},
		{"flag without value", "useinbandfec", map[string]string{"useinbandfec": ""}},
		{"spaces", "minptime=10; useinbandfec=1", map[string]string{"minptime": "10", "useinbandfec": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFmtp(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("parseFmtp(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("parseFmtp(%q)[%s] = %q, want %q", tt.in, key, got[key], want)
				}
			}
		})
	}
}

func TestOfferOptions(t *testing.T) {
	if got := offerOptions(nil); got != nil {
		t.Errorf("offerOptions(nil) = %v, want nil", got)
	}

	options := offerOptions(&rtc.MediaConstraints{
		Mandatory: []rtc.ConstraintPair{
			{Key: "IceRestart", Value: "true"},
			{Key: "OfferToReceiveVideo", Value: "true"},
		},
		Optional: []rtc.ConstraintPair{
			{Key: "VoiceActivityDetection", Value: "false"},
		},
	})
	if !options.ICERestart {
		t.Error("ICERestart not mapped")
	}
	if options.VoiceActivityDetection {
		t.Error("VoiceActivityDetection should be false")
	}
}

func TestAnswerOptions(t *testing.T) {
	if got := answerOptions(nil); got != nil {
		t.Errorf("answerOptions(nil) = %v, want nil", got)
	}
	options := answerOptions(&rtc.MediaConstraints{
		Mandatory: []rtc.ConstraintPair{{Key: "VoiceActivityDetection", Value: "true"}},
	})
	if !options.VoiceActivityDetection {
		t.Error("VoiceActivityDetection not mapped")
	}
}
