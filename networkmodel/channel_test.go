package networkmodel

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

type fixedPositions []manetsim.Vector

func (p fixedPositions) NodeCount() int {
	return len(p)
}

func (p fixedPositions) Position(node int, now sim.VTimeInSec) manetsim.Vector {
	return p[node]
}

var _ = Describe("FriisChannel", func() {
	var (
		positions fixedPositions
		channel   *FriisChannel
	)

	BeforeEach(func() {
		positions = fixedPositions{
			{X: 0},
			{X: 500},
			{X: 1000},
			{X: 3000},
		}
		channel = NewFriisChannel(positions, 15, -84, 2.412e9)
	})

	It("should compute the free space range", func() {
		Expect(FriisRange(15, -84, 2.412e9)).To(BeNumerically("~", 881.52, 0.01))
		Expect(channel.Range()).To(Equal(FriisRange(15, -84, 2.412e9)))
	})

	It("should compute the received power", func() {
		Expect(FriisRxPower(15, 2.412e9, 100)).
			To(BeNumerically("~", -65.095, 0.001))
		Expect(FriisRxPower(15, 2.412e9, channel.Range())).
			To(BeNumerically("~", -84, 1e-9))
	})

	It("should connect nodes in range", func() {
		Expect(channel.Connected(0, 1, 0)).To(BeTrue())
		Expect(channel.Connected(1, 0, 0)).To(BeTrue())
		Expect(channel.Connected(0, 2, 0)).To(BeFalse())
		Expect(channel.Connected(2, 3, 0)).To(BeFalse())
	})

	It("should not connect a node to itself", func() {
		Expect(channel.Connected(1, 1, 0)).To(BeFalse())
	})

	It("should list the links that are up", func() {
		Expect(channel.Links(0)).To(Equal([]Link{
			{Left: 0, Right: 1, Distance: 500},
			{Left: 1, Right: 2, Distance: 500},
		}))
	})
})
