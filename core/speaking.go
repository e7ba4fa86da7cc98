package pipeline

import "sync/atomic"

// speakingState tracks who is audibly speaking. It is owned by the session;
// the segmenter or fallback recognizer drives the user side and the
// synthesis orchestrator drives the agent side. Collaborators read it
// through snapshots only.
type speakingState struct {
	userSpeaking  atomic.Bool
	agentSpeaking atomic.Bool
}

// SpeakingSnapshot is a point-in-time read of the speaking state.
type SpeakingSnapshot struct {
	UserSpeaking  bool
	AgentSpeaking bool
}

func (s *speakingState) setUserSpeaking(speaking bool)  { s.userSpeaking.Store(speaking) }
func (s *speakingState) setAgentSpeaking(speaking bool) { s.agentSpeaking.Store(speaking) }

func (s *speakingState) snapshot() SpeakingSnapshot {
	return SpeakingSnapshot{
		UserSpeaking:  s.userSpeaking.Load(),
		AgentSpeaking: s.agentSpeaking.Load(),
	}
}
