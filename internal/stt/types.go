package stt

// TranscriptEvent is one normalized recognition result. Interim events are
// advisory; exactly the final events trigger downstream processing.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

// Wire messages for the realtime STT endpoint. The first message on the
// stream is always the configuration; subsequent client messages are raw
// binary audio.
type configMessage struct {
	Type            string `json:"type"`
	Encoding        string `json:"encoding"`
	SampleRate      int    `json:"sample_rate"`
	Language        string `json:"language"`
	InterimResults  bool   `json:"interim_results"`
	SingleUtterance bool   `json:"single_utterance"`
}

type terminateMessage struct {
	Type string `json:"type"`
}

type resultMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Message string `json:"message,omitempty"`
}

const (
	messageTypeConfig     = "config"
	messageTypeTerminate  = "terminate"
	messageTypeTranscript = "transcript"
	messageTypeError      = "error"

	encodingPCM16 = "pcm_s16le"
)
