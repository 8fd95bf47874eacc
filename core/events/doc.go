// Package events defines the typed event contract flowing through the
// conversation pipeline.
//
// Event is a closed variant: only types declared in this package implement
// it. Stages switch over the concrete types and must keep an explicit
// default case.
//
// Event kinds are grouped by namespace:
//
//   - system.*
//   - audio.*
//   - transcription.*
//   - interruption.*
//   - user.*
//   - function_call.*
//   - response.*
//   - speech.*
//   - llm.*
//
// system events
//
//   - Start (system.start): pipeline started; stages spawn background work.
//   - End (system.end): graceful shutdown; stages stop background work.
//   - Cancel (system.cancel): terminal cancellation; stages stop immediately.
//   - Error (system.error): a stage failed; non-fatal unless Fatal is set.
//
// audio events
//
//   - AudioChunk (audio.chunk): raw user input audio.
//
// transcription events
//
//   - TranscriptionUpdate (transcription.update): interim or final
//     transcription of user speech, optionally attributed to a speaker.
//
// interruption and user events
//
//   - InterruptionStarted (interruption.started): user started speaking over
//     the assistant; speculative output must be discarded.
//   - InterruptionEnded (interruption.ended): user speech activity ended.
//   - UserStoppedSpeaking (user.stopped_speaking): the user's utterance is
//     complete.
//
// function_call events
//
//   - FunctionCallStarted (function_call.started): tool execution started.
//   - FunctionCallResult (function_call.result): tool execution finished.
//
// response and speech events
//
//   - ResponseStarted (response.started): generation started.
//   - GeneratedText (response.text): streamed generated text segment.
//   - ResponseEnded (response.ended): generation finished.
//   - Speak (speech.speak): text to be spoken verbatim.
//   - SpeechAudio (speech.audio): synthesized speech audio.
//
// llm events
//
//   - ContextUpdate (llm.context_update): the full conversation changed and
//     generation should run on it.
//   - MessagesRequest (llm.messages_request): generation should run on an
//     explicit message list.
package events
