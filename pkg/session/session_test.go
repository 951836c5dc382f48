package session_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/llmerror"
	"github.com/patchwell/sidechat/pkg/provider"
	"github.com/patchwell/sidechat/pkg/session"
	"github.com/patchwell/sidechat/pkg/stream"
)

var _ = Describe("Session", func() {
	var (
		gateway *fakeGateway
		store   *memoryStore
		conv    *chat.Conversation
		sess    *session.Session
	)

	localModel := provider.Model{ID: "test-model", Provider: provider.TypeOllama}

	newSession := func(opts session.Options) *session.Session {
		conv = chat.NewConversation()
		if opts.Gateway == nil {
			opts.Gateway = gateway
		}
		if opts.Store == nil {
			opts.Store = store
		}
		if opts.Model.ID == "" {
			opts.Model = localModel
		}
		return session.New(conv, opts)
	}

	BeforeEach(func() {
		gateway = &fakeGateway{}
		store = newMemoryStore()
	})

	Describe("SendMessage", func() {
		It("should append the user message and a finalized assistant reply", func() {
			gateway.script = scriptEvents(
				stream.Start{},
				stream.TextDelta{Text: "Hello "},
				stream.TextDelta{Text: "there"},
				stream.Finish{},
			)
			sess = newSession(session.Options{})

			err := sess.SendMessage(context.Background(), session.Input{Text: "Hi"})
			Expect(err).ToNot(HaveOccurred())

			snapshot := sess.Conversation()
			Expect(snapshot.Status).To(Equal(chat.StatusReady))
			Expect(snapshot.Messages).To(HaveLen(2))
			Expect(snapshot.Messages[0].IsUser()).To(BeTrue())
			Expect(snapshot.Messages[1].Text()).To(Equal("Hello there"))
			Expect(snapshot.Messages[1].Status).To(Equal(chat.StatusReady))
			Expect(snapshot.Title).To(Equal("Hi"))
		})

		It("should persist after appending and after finalizing", func() {
			gateway.script = scriptEvents(stream.TextDelta{Text: "ok"})
			sess = newSession(session.Options{})

			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).To(Succeed())
			Expect(store.SaveCount()).To(BeNumerically(">=", 2))
		})

		It("should ignore empty input", func() {
			sess = newSession(session.Options{})

			Expect(sess.SendMessage(context.Background(), session.Input{Text: "   "})).To(Succeed())
			Expect(sess.Conversation().Messages).To(BeEmpty())
			Expect(gateway.Requests()).To(BeEmpty())
		})

		It("should refuse to send when the required credential is missing", func() {
			sess = newSession(session.Options{
				Model: provider.Model{ID: "gpt-4o", Provider: provider.TypeOpenAI},
			})

			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).To(Succeed())
			Expect(sess.Conversation().Messages).To(BeEmpty())
			Expect(gateway.Requests()).To(BeEmpty())
		})

		It("should refuse a second send while one is in flight", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			gateway.script = func(ctx context.Context, ch chan<- stream.Event) {
				ch <- stream.TextDelta{Text: "busy"}
				close(started)
				select {
				case <-release:
				case <-ctx.Done():
				}
			}
			sess = newSession(session.Options{})

			done := make(chan error, 1)
			go func() {
				done <- sess.SendMessage(context.Background(), session.Input{Text: "first"})
			}()
			Eventually(started).Should(BeClosed())

			Expect(sess.SendMessage(context.Background(), session.Input{Text: "second"})).To(Succeed())
			Expect(sess.Conversation().Messages).To(HaveLen(2))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("should exclude the streaming placeholder and replay prior turns", func() {
			gateway.script = scriptEvents(stream.TextDelta{Text: "first answer"})
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "one"})).To(Succeed())

			gateway.script = scriptEvents(stream.TextDelta{Text: "second answer"})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "two"})).To(Succeed())

			requests := gateway.Requests()
			Expect(requests).To(HaveLen(2))
			Expect(requests[0].Messages).To(HaveLen(1))
			Expect(requests[1].Messages).To(HaveLen(3))
			Expect(requests[1].Messages[1].Text()).To(Equal("first answer"))
		})

		It("should snapshot settings at send time", func() {
			gateway.script = scriptEvents(stream.TextDelta{Text: "ok"})
			sess = newSession(session.Options{SystemPrompt: "original"})

			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).To(Succeed())
			Expect(gateway.Requests()[0].SystemPrompt).To(Equal("original"))
		})
	})

	Describe("failure handling", func() {
		It("should fail the turn when the gateway cannot start", func() {
			gateway.err = errors.New("dial tcp: connection refused")
			var reported *llmerror.Error
			sess = newSession(session.Options{
				OnError: func(cerr *llmerror.Error) { reported = cerr },
			})

			err := sess.SendMessage(context.Background(), session.Input{Text: "Hi"})
			Expect(err).To(HaveOccurred())

			snapshot := sess.Conversation()
			Expect(snapshot.Status).To(Equal(chat.StatusError))
			Expect(snapshot.Messages[1].Status).To(Equal(chat.StatusError))
			Expect(reported).ToNot(BeNil())
			Expect(reported.Kind).To(Equal(llmerror.KindNetwork))
			Expect(sess.LastError()).To(Equal(reported))
		})

		It("should keep partial output and mark the error partial", func() {
			gateway.script = scriptEvents(
				stream.TextDelta{Text: "partial output"},
				stream.Error{Err: errors.New("connection reset")},
			)
			sess = newSession(session.Options{})

			err := sess.SendMessage(context.Background(), session.Input{Text: "Hi"})
			Expect(err).To(HaveOccurred())

			var cerr *llmerror.Error
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Partial).To(BeTrue())
			Expect(sess.Conversation().Messages[1].Text()).To(Equal("partial output"))
		})

		It("should treat an empty successful stream as a stream error", func() {
			gateway.script = scriptEvents(stream.Start{}, stream.Finish{})
			sess = newSession(session.Options{})

			err := sess.SendMessage(context.Background(), session.Input{Text: "Hi"})
			Expect(err).To(HaveOccurred())

			var cerr *llmerror.Error
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Kind).To(Equal(llmerror.KindStream))
			Expect(cerr.Partial).To(BeFalse())
		})

		It("should clear the error on the next send", func() {
			gateway.err = errors.New("boom")
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).ToNot(Succeed())
			Expect(sess.LastError()).ToNot(BeNil())

			gateway.err = nil
			gateway.script = scriptEvents(stream.TextDelta{Text: "recovered"})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "again"})).To(Succeed())
			Expect(sess.LastError()).To(BeNil())
			Expect(sess.Conversation().Status).To(Equal(chat.StatusReady))
		})
	})

	Describe("Stop", func() {
		It("should finalize a cancelled stream as a truncated success", func() {
			started := make(chan struct{})
			gateway.script = func(ctx context.Context, ch chan<- stream.Event) {
				ch <- stream.TextDelta{Text: "partial"}
				close(started)
				<-ctx.Done()
			}
			sess = newSession(session.Options{})

			done := make(chan error, 1)
			go func() {
				done <- sess.SendMessage(context.Background(), session.Input{Text: "Hi"})
			}()
			Eventually(started).Should(BeClosed())

			sess.Stop()
			Eventually(done).Should(Receive(BeNil()))

			snapshot := sess.Conversation()
			Expect(snapshot.Status).To(Equal(chat.StatusReady))
			Expect(snapshot.Messages[1].Text()).To(Equal("partial"))
			Expect(snapshot.Messages[1].Status).To(Equal(chat.StatusReady))
			Expect(sess.LastError()).To(BeNil())
		})

		It("should be safe to call with nothing in flight", func() {
			sess = newSession(session.Options{})
			sess.Stop()
			sess.Stop()
			Expect(sess.Conversation().Status).To(Equal(chat.StatusReady))
		})
	})

	Describe("Reload", func() {
		It("should replace the last assistant message with a fresh generation", func() {
			gateway.script = scriptEvents(stream.TextDelta{Text: "first answer"})
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).To(Succeed())

			gateway.script = scriptEvents(stream.TextDelta{Text: "second answer"})
			Expect(sess.Reload(context.Background())).To(Succeed())

			snapshot := sess.Conversation()
			Expect(snapshot.Messages).To(HaveLen(2))
			Expect(snapshot.Messages[1].Text()).To(Equal("second answer"))
		})

		It("should recover an errored turn", func() {
			gateway.script = scriptEvents(stream.Error{Err: errors.New("connection reset")})
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).ToNot(Succeed())

			gateway.script = scriptEvents(stream.TextDelta{Text: "better"})
			Expect(sess.Reload(context.Background())).To(Succeed())

			snapshot := sess.Conversation()
			Expect(snapshot.Status).To(Equal(chat.StatusReady))
			Expect(snapshot.Messages[1].Text()).To(Equal("better"))
			Expect(sess.LastError()).To(BeNil())
		})

		It("should be a no-op without a prior user message", func() {
			sess = newSession(session.Options{})
			Expect(sess.Reload(context.Background())).To(Succeed())
			Expect(gateway.Requests()).To(BeEmpty())
		})
	})

	Describe("ClearError and ResetState", func() {
		It("should return to ready without touching messages", func() {
			gateway.err = errors.New("boom")
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).ToNot(Succeed())

			sess.ClearError()
			snapshot := sess.Conversation()
			Expect(snapshot.Status).To(Equal(chat.StatusReady))
			Expect(snapshot.Messages).To(HaveLen(2))
			Expect(sess.LastError()).To(BeNil())
		})

		It("should discard all messages on reset", func() {
			gateway.script = scriptEvents(stream.TextDelta{Text: "ok"})
			sess = newSession(session.Options{})
			Expect(sess.SendMessage(context.Background(), session.Input{Text: "Hi"})).To(Succeed())

			sess.ResetState()
			Expect(sess.Conversation().Messages).To(BeEmpty())
			Expect(sess.Conversation().Status).To(Equal(chat.StatusReady))
		})
	})

	Describe("independence", func() {
		It("should stream two sessions concurrently without interference", func() {
			gatewayA := &fakeGateway{}
			gatewayB := &fakeGateway{}

			startedA := make(chan struct{})
			releaseA := make(chan struct{})
			gatewayA.script = func(ctx context.Context, ch chan<- stream.Event) {
				ch <- stream.TextDelta{Text: "slow answer"}
				close(startedA)
				select {
				case <-releaseA:
				case <-ctx.Done():
				}
			}
			gatewayB.script = scriptEvents(stream.TextDelta{Text: "fast answer"})

			convA := chat.NewConversation()
			convB := chat.NewConversation()
			sessA := session.New(convA, session.Options{Gateway: gatewayA, Model: localModel})
			sessB := session.New(convB, session.Options{Gateway: gatewayB, Model: localModel})

			doneA := make(chan error, 1)
			go func() {
				doneA <- sessA.SendMessage(context.Background(), session.Input{Text: "a"})
			}()
			Eventually(startedA).Should(BeClosed())

			Expect(sessB.SendMessage(context.Background(), session.Input{Text: "b"})).To(Succeed())
			Expect(sessB.Conversation().Status).To(Equal(chat.StatusReady))
			Expect(sessA.Status()).To(Equal(chat.StatusStreaming))

			close(releaseA)
			Eventually(doneA).Should(Receive(BeNil()))
			Expect(sessA.Conversation().Messages[1].Text()).To(Equal("slow answer"))
		})

		It("should leave B streaming when A is stopped mid-stream", func() {
			gatewayA := &fakeGateway{}
			gatewayB := &fakeGateway{}

			startedA := make(chan struct{})
			gatewayA.script = func(ctx context.Context, ch chan<- stream.Event) {
				ch <- stream.TextDelta{Text: "partial a"}
				close(startedA)
				<-ctx.Done()
			}

			startedB := make(chan struct{})
			releaseB := make(chan struct{})
			gatewayB.script = func(ctx context.Context, ch chan<- stream.Event) {
				ch <- stream.TextDelta{Text: "full "}
				close(startedB)
				select {
				case <-releaseB:
					ch <- stream.TextDelta{Text: "answer b"}
				case <-ctx.Done():
				}
			}

			convA := chat.NewConversation()
			convB := chat.NewConversation()
			sessA := session.New(convA, session.Options{Gateway: gatewayA, Model: localModel})
			sessB := session.New(convB, session.Options{Gateway: gatewayB, Model: localModel})

			doneA := make(chan error, 1)
			doneB := make(chan error, 1)
			go func() {
				doneA <- sessA.SendMessage(context.Background(), session.Input{Text: "a"})
			}()
			go func() {
				doneB <- sessB.SendMessage(context.Background(), session.Input{Text: "b"})
			}()
			Eventually(startedA).Should(BeClosed())
			Eventually(startedB).Should(BeClosed())

			sessA.Stop()
			Eventually(doneA).Should(Receive(BeNil()))

			snapshotA := sessA.Conversation()
			Expect(snapshotA.Status).To(Equal(chat.StatusReady))
			Expect(snapshotA.Messages[1].Text()).To(Equal("partial a"))
			Expect(sessA.LastError()).To(BeNil())

			Expect(sessB.Status()).To(Equal(chat.StatusStreaming))

			close(releaseB)
			Eventually(doneB).Should(Receive(BeNil()))
			snapshotB := sessB.Conversation()
			Expect(snapshotB.Status).To(Equal(chat.StatusReady))
			Expect(snapshotB.Messages[1].Text()).To(Equal("full answer b"))
			Expect(sessB.LastError()).To(BeNil())
		})
	})
})
