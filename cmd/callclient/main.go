package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ai-voice-receptionist/internal/service/codec"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// One media frame is 20ms of telephone audio:
// 160 samples at 8kHz, 16-bit before u-law encoding.
const (
	frameSamples    = 160
	frameIntervalMs = 20
)

type outboundFrame struct {
	Event string        `json:"event"`
	Start *startPayload `json:"start,omitempty"`
	Media *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSid        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

func main() {
	serverAddr := flag.String("server", "localhost:8080", "Voice receptionist host:port")
	callSid := flag.String("call", "CAlocal-"+time.Now().Format("150405"), "Call SID (must be registered via /incoming-call first unless the lookup is stubbed)")
	wavFile := flag.String("wav", "", "Path to WAV file (8kHz 16-bit mono); empty streams a generated tone")
	freq := flag.Float64("freq", 440, "Tone frequency in Hz for generated audio")
	duration := flag.Duration("duration", 5*time.Second, "How long to stream generated audio")
	flag.Parse()

	url := "ws://" + *serverAddr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", url)

	// Count what the agent plays back to us.
	var inboundFrames, inboundBytes int64
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Event string        `json:"event"`
				Media *mediaPayload `json:"media"`
			}
			if json.Unmarshal(data, &msg) != nil || msg.Event != "media" || msg.Media == nil {
				continue
			}
			if audio, err := base64.StdEncoding.DecodeString(msg.Media.Payload); err == nil {
				atomic.AddInt64(&inboundFrames, 1)
				atomic.AddInt64(&inboundBytes, int64(len(audio)))
			}
		}
	}()

	streamSid := "MZlocal-" + time.Now().Format("150405")
	send(conn, outboundFrame{Event: "connected"})
	send(conn, outboundFrame{Event: "start", Start: &startPayload{
		StreamSid:        streamSid,
		CustomParameters: map[string]string{"callSid": *callSid},
	}})
	log.Printf("Streaming call: callSid=%s streamSid=%s", *callSid, streamSid)

	var frames int
	startTime := time.Now()
	if *wavFile != "" {
		frames = streamWAV(conn, *wavFile)
	} else {
		frames = streamTone(conn, *freq, *duration)
	}
	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d frames in %v", frames, elapsed.Round(time.Millisecond))

	send(conn, outboundFrame{Event: "stop"})

	// Give trailing agent audio a moment to arrive.
	select {
	case <-readerDone:
	case <-time.After(2 * time.Second):
	}

	log.Printf("Received from agent: %d media frames, %d audio bytes",
		atomic.LoadInt64(&inboundFrames), atomic.LoadInt64(&inboundBytes))
}

func send(conn *websocket.Conn, frame outboundFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Fatalf("Failed to send %s frame: %v", frame.Event, err)
	}
}

func sendAudio(conn *websocket.Conn, mulaw []byte) {
	send(conn, outboundFrame{Event: "media", Media: &mediaPayload{
		Payload: base64.StdEncoding.EncodeToString(mulaw),
	}})
}

// streamTone sends a sine tone in real-time 20ms frames.
func streamTone(conn *websocket.Conn, freq float64, duration time.Duration) int {
	totalFrames := int(duration.Milliseconds()) / frameIntervalMs
	pcm := make([]byte, frameSamples*2)

	for f := 0; f < totalFrames; f++ {
		for i := 0; i < frameSamples; i++ {
			n := f*frameSamples + i
			v := int16(6000 * math.Sin(2*math.Pi*freq*float64(n)/float64(codec.PhoneRate)))
			pcm[2*i] = byte(v)
			pcm[2*i+1] = byte(v >> 8)
		}
		sendAudio(conn, codec.DecodeForPhone(pcm, codec.PhoneRate))

		if (f+1)%100 == 0 {
			log.Printf("Sent frame %d/%d", f+1, totalFrames)
		}
		time.Sleep(frameIntervalMs * time.Millisecond)
	}
	return totalFrames
}

// streamWAV sends a WAV file's samples in real-time 20ms frames.
func streamWAV(conn *websocket.Conn, path string) int {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if numChannels != 1 {
		log.Fatal("Only mono audio supported")
	}
	if bitsPerSample != 16 {
		log.Fatal("Only 16-bit audio supported")
	}
	if sampleRate != codec.PhoneRate {
		log.Printf("Warning: Sample rate is %d Hz, expected %d Hz", sampleRate, codec.PhoneRate)
	}

	chunk := make([]byte, frameSamples*2)
	frames := 0
	for {
		n, err := io.ReadFull(f, chunk)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			log.Fatalf("Failed to read audio: %v", err)
		}

		sendAudio(conn, codec.DecodeForPhone(chunk[:n-n%2], codec.PhoneRate))
		frames++
		if frames%100 == 0 {
			log.Printf("Sent frame %d", frames)
		}
		time.Sleep(frameIntervalMs * time.Millisecond)

		if err == io.ErrUnexpectedEOF {
			break
		}
	}
	return frames
}
