package infra

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	testhelpers "github.com/imamik/stagehand/internal/testing"
)

var _ = Describe("Up", func() {
	var (
		cfg      *config.Configuration
		infra    *testhelpers.MockInfrastructure
		exec     *testhelpers.MockExecutor
		sleeper  *testhelpers.RecordingSleeper
		observer *testhelpers.RecordingObserver
		ctx      context.Context
	)

	BeforeEach(func() {
		cfg = testhelpers.NewConfigBuilder().
			WithProvider(config.ProviderHCloud).
			WithNodes("node_000", "node_001", "node_002").
			Build(GinkgoT())
		infra = &testhelpers.MockInfrastructure{}
		exec = &testhelpers.MockExecutor{}
		sleeper = &testhelpers.RecordingSleeper{}
		observer = testhelpers.NewRecordingObserver()
		ctx = context.Background()
	})

	newOrchestrator := func(opts ...Option) *Orchestrator {
		return New(cfg, infra, exec, append([]Option{
			WithSleeper(sleeper.Sleep),
			WithObserver(observer),
		}, opts...)...)
	}

	stored := func() *netsettings.Settings {
		settings, err := netsettings.Load(cfg.NetworkSettingsFile()).Unwrap()
		Expect(err).NotTo(HaveOccurred())
		return settings
	}

	Context("when the middle node cannot be applied", func() {
		BeforeEach(func() {
			stoppedUntilApplied(infra, "node_001")
		})

		It("reports an aggregate failure and keeps the other nodes", func() {
			orch := newOrchestrator()
			err := orch.Up(ctx, cfg.NodeNames())

			Expect(err).To(MatchError(provisioning.ErrInfrastructure))
			Expect(stored().Names()).To(Equal([]string{"node_000", "node_002"}))

			outcomes := orch.Outcomes()
			Expect(outcomes).To(HaveLen(3))
			Expect(outcomes[0].Succeeded()).To(BeTrue())
			Expect(outcomes[1].State).To(Equal(provisioning.NodeFailed))
			Expect(outcomes[2].Succeeded()).To(BeTrue())
		})

		It("emits a failure event for the node", func() {
			_ = newOrchestrator().Up(ctx, cfg.NodeNames())

			failed := observer.EventsOfType(provisioning.EventNodeFailed)
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Resource).To(Equal("node_001"))
		})
	})

	Context("when a node only answers on its public address", func() {
		BeforeEach(func() {
			exec.RunCommandFunc = func(_ context.Context, conn netsettings.Record, command string) (string, error) {
				if command == provisioning.ReachabilityProbeCommand && conn.Network == conn.PrivateIP {
					return "", errors.New("connection refused")
				}
				if command == provisioning.ProvisionedCheckCommand {
					return "PROVISIONED", nil
				}
				return "connected", nil
			}
		})

		It("stores the public address", func() {
			Expect(newOrchestrator().Up(ctx, []string{"node_000"})).To(Succeed())

			rec := stored().NodeSettings("node_000")
			Expect(rec.Network).To(Equal(testhelpers.DefaultResourceNetwork("node_000").PublicIP))
			Expect(sleeper.Count()).To(BeZero())
		})
	})

	Context("when provisioning keeps failing", func() {
		BeforeEach(func() {
			for _, n := range cfg.NodeNames() {
				Expect(writeFile(cfg.RoleFile(n), "{}")).To(Succeed())
			}
			exec.ConfigureFunc = func(context.Context, netsettings.Record, string, []provisioning.FileTransfer) error {
				return errors.New("recipe compile error")
			}
		})

		It("uses every attempt and recreates the node between them", func() {
			err := newOrchestrator(WithAttempts(4)).Up(ctx, []string{"node_002"})

			Expect(err).To(MatchError(provisioning.ErrConfiguration))
			Expect(exec.ConfigureCalls()).To(HaveLen(4))
			Expect(infra.CallCount("Destroy", "node_002")).To(Equal(3))
			Expect(stored().Names()).To(ConsistOf("node_002"))
		})
	})
})
