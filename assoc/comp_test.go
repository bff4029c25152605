package assoc

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/lockstepsim/cachesim/replacement"
)

var _ = ginkgo.Describe("Comp", func() {
	var c *Comp

	ginkgo.BeforeEach(func() {
		c = MakeBuilder().
			WithWays(4).
			WithNumReadPorts(2).
			WithNumFillPorts(2).
			Build("Cache")
	})

	fill := func(addr, data uint64) {
		rsp := c.Fill(0, FillReq{
			Enable:  true,
			Address: addr,
			Data:    data,
			Commit:  true,
		})
		Expect(rsp.Accepted).To(BeTrue())
		c.Commit()
	}

	ginkgo.It("should start empty", func() {
		Expect(c.Occupancy()).To(Equal(0))
		Expect(c.Empty()).To(BeTrue())
		Expect(c.Full()).To(BeFalse())
	})

	ginkgo.It("should round trip a fill and a read", func() {
		fill(0x10, 7)

		Expect(c.Occupancy()).To(Equal(1))

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeTrue())
		Expect(rsp.Data).To(Equal(uint64(7)))
	})

	ginkgo.It("should miss on an address that was never filled", func() {
		fill(0x10, 7)

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x20})
		Expect(rsp.Valid).To(BeFalse())
	})

	ginkgo.It("should do nothing on a disabled port", func() {
		fill(0x10, 7)

		rsp := c.Read(0, ReadReq{Enable: false, Address: 0x10})
		Expect(rsp.Valid).To(BeFalse())

		c.Fill(0, FillReq{Enable: false, Address: 0x20, Commit: true})
		c.Commit()
		Expect(c.Occupancy()).To(Equal(1))
	})

	ginkgo.It("should not expose a fill before the step boundary", func() {
		c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x10,
			Data:    7,
			Commit:  true,
		})

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeFalse())

		c.Commit()

		rsp = c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeTrue())
	})

	ginkgo.It("should overwrite the data of a hit fill", func() {
		fill(0x10, 7)
		fill(0x10, 8)

		Expect(c.Occupancy()).To(Equal(1))

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Data).To(Equal(uint64(8)))
	})

	ginkgo.It("should place distinct fills in distinct ways", func() {
		fill(0x10, 7)
		fill(0x20, 8)
		fill(0x30, 9)
		fill(0x40, 10)

		Expect(c.Occupancy()).To(Equal(4))
		Expect(c.Full()).To(BeTrue())

		for _, addr := range []uint64{0x10, 0x20, 0x30, 0x40} {
			_, found := c.Probe(addr)
			Expect(found).To(BeTrue())
		}
	})

	ginkgo.It("should invalidate on a non-commit fill", func() {
		fill(0x10, 7)

		c.Fill(0, FillReq{Enable: true, Address: 0x10, Commit: false})
		c.Commit()

		Expect(c.Occupancy()).To(Equal(0))

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeFalse())
	})

	ginkgo.It("should treat invalidating an absent address as a no-op", func() {
		fill(0x10, 7)

		c.Fill(0, FillReq{Enable: true, Address: 0x99, Commit: false})
		c.Commit()

		Expect(c.Occupancy()).To(Equal(1))
	})

	ginkgo.It("should read and invalidate atomically", func() {
		fill(0x10, 7)

		rsp := c.Read(0, ReadReq{
			Enable:          true,
			Address:         0x10,
			InvalidateOnHit: true,
		})
		Expect(rsp.Valid).To(BeTrue())
		Expect(rsp.Data).To(Equal(uint64(7)))

		// A second port still sees the entry in the same step.
		rsp = c.Read(1, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeTrue())

		c.Commit()

		rsp = c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeFalse())
		Expect(c.Occupancy()).To(Equal(0))
	})

	ginkgo.It("should not invalidate on a plain read", func() {
		fill(0x10, 7)

		c.Read(0, ReadReq{Enable: true, Address: 0x10})
		c.Commit()

		Expect(c.Occupancy()).To(Equal(1))
	})

	ginkgo.It("should evict the stalest way once full", func() {
		fill(0x10, 7)
		fill(0x20, 8)
		fill(0x30, 9)
		fill(0x40, 10)

		fill(0x50, 11)

		Expect(c.Occupancy()).To(Equal(4))

		_, found := c.Probe(0x10)
		Expect(found).To(BeFalse())

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x50})
		Expect(rsp.Valid).To(BeTrue())
		Expect(rsp.Data).To(Equal(uint64(11)))
	})

	ginkgo.It("should reuse a way freed earlier in the same step", func() {
		fill(0x10, 7)
		fill(0x20, 8)
		fill(0x30, 9)
		fill(0x40, 10)

		rsp := c.Read(0, ReadReq{
			Enable:          true,
			Address:         0x20,
			InvalidateOnHit: true,
		})
		Expect(rsp.Valid).To(BeTrue())

		fillRsp := c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x50,
			Data:    11,
			Commit:  true,
		})
		Expect(fillRsp.Accepted).To(BeTrue())

		c.Commit()

		Expect(c.Occupancy()).To(Equal(4))

		_, found := c.Probe(0x20)
		Expect(found).To(BeFalse())

		for _, addr := range []uint64{0x10, 0x30, 0x40, 0x50} {
			_, found := c.Probe(addr)
			Expect(found).To(BeTrue())
		}
	})

	ginkgo.It("should arbitrate two fills that want the same victim", func() {
		fill(0x10, 7)
		fill(0x20, 8)
		fill(0x30, 9)
		fill(0x40, 10)

		rsp0 := c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x50,
			Data:    11,
			Commit:  true,
		})
		rsp1 := c.Fill(1, FillReq{
			Enable:  true,
			Address: 0x60,
			Data:    12,
			Commit:  true,
		})

		Expect(rsp0.Accepted).To(BeTrue())
		Expect(rsp1.Accepted).To(BeFalse())

		c.Commit()

		_, found := c.Probe(0x50)
		Expect(found).To(BeTrue())
		_, found = c.Probe(0x60)
		Expect(found).To(BeFalse())

		// The losing fill goes through on the next step.
		rsp1 = c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x60,
			Data:    12,
			Commit:  true,
		})
		Expect(rsp1.Accepted).To(BeTrue())
	})

	ginkgo.It("should refuse a second fill of the same tag in one step", func() {
		rsp0 := c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x10,
			Data:    7,
			Commit:  true,
		})
		rsp1 := c.Fill(1, FillReq{
			Enable:  true,
			Address: 0x10,
			Data:    8,
			Commit:  true,
		})

		Expect(rsp0.Accepted).To(BeTrue())
		Expect(rsp1.Accepted).To(BeFalse())

		c.Commit()

		Expect(c.Occupancy()).To(Equal(1))
	})

	ginkgo.It("should keep tags unique through mixed traffic", func() {
		addrs := []uint64{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}

		for step := 0; step < 200; step++ {
			addr := addrs[(step*7)%len(addrs)]

			c.Fill(0, FillReq{
				Enable:  true,
				Address: addr,
				Data:    uint64(step),
				Commit:  step%5 != 4,
			})
			c.Read(0, ReadReq{
				Enable:          true,
				Address:         addrs[(step*3)%len(addrs)],
				InvalidateOnHit: step%7 == 6,
			})
			c.Commit()

			seen := map[uint64]bool{}
			for w := 0; w < c.Ways(); w++ {
				entry := c.EntryAt(w)
				if !entry.Valid {
					continue
				}

				Expect(seen[entry.Tag]).To(BeFalse())
				seen[entry.Tag] = true
			}

			Expect(c.Occupancy()).To(BeNumerically("<=", c.Ways()))
		}
	})

	ginkgo.It("should panic when a port is used twice in one step", func() {
		c.Read(0, ReadReq{Enable: true, Address: 0x10})

		Expect(func() {
			c.Read(0, ReadReq{Enable: true, Address: 0x20})
		}).To(Panic())
	})

	ginkgo.It("should panic on an out-of-range port", func() {
		Expect(func() {
			c.Read(2, ReadReq{Enable: true, Address: 0x10})
		}).To(Panic())
		Expect(func() {
			c.Fill(-1, FillReq{Enable: true, Address: 0x10})
		}).To(Panic())
	})

	ginkgo.It("should clear everything on Reset", func() {
		fill(0x10, 7)
		fill(0x20, 8)

		c.Reset()

		Expect(c.Empty()).To(BeTrue())

		rsp := c.Read(0, ReadReq{Enable: true, Address: 0x10})
		Expect(rsp.Valid).To(BeFalse())
	})
})

var _ = ginkgo.Describe("Comp with eviction ports", func() {
	var c *Comp

	ginkgo.BeforeEach(func() {
		c = MakeBuilder().
			WithWays(4).
			WithNumEvictionPorts(1).
			Build("Cache")
	})

	fill := func(addr, data uint64) Eviction {
		rsp := c.Fill(0, FillReq{
			Enable:  true,
			Address: addr,
			Data:    data,
			Commit:  true,
		})
		Expect(rsp.Accepted).To(BeTrue())
		c.Commit()

		return rsp.Eviction
	}

	ginkgo.It("should not evict while filling empty ways", func() {
		Expect(fill(0x10, 7).Valid).To(BeFalse())
		Expect(fill(0x20, 8).Valid).To(BeFalse())
		Expect(fill(0x30, 9).Valid).To(BeFalse())
		Expect(fill(0x40, 10).Valid).To(BeFalse())
	})

	ginkgo.It("should emit the victim on the eviction port", func() {
		fill(0x10, 7)
		fill(0x20, 8)
		fill(0x30, 9)
		fill(0x40, 10)

		eviction := fill(0x50, 11)

		Expect(eviction.Valid).To(BeTrue())
		Expect(eviction.Address).To(Equal(uint64(0x10)))
		Expect(eviction.Data).To(Equal(uint64(7)))
	})

	ginkgo.It("should not evict when overwriting a hit", func() {
		fill(0x10, 7)

		Expect(fill(0x10, 8).Valid).To(BeFalse())
	})
})

var _ = ginkgo.Describe("Comp with a mock policy", func() {
	var (
		mockCtrl *gomock.Controller
		policy   *MockPolicy
		c        *Comp
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		policy = NewMockPolicy(mockCtrl)

		c = MakeBuilder().
			WithWays(4).
			WithNumReadPorts(2).
			WithNumFillPorts(2).
			WithPolicyFactory(func(ways int) replacement.Policy {
				return policy
			}).
			Build("Cache")
	})

	warmUp := func() {
		addrs := []uint64{0x10, 0x20, 0x30, 0x40}
		for i, addr := range addrs {
			policy.EXPECT().Hit(i)

			c.Fill(0, FillReq{
				Enable:  true,
				Address: addr,
				Data:    uint64(i),
				Commit:  true,
			})
			c.Commit()
		}
	}

	ginkgo.It("should not consult the policy while free ways remain", func() {
		// No Allocate expectation: filling an empty cache picks
		// invalid ways directly.
		warmUp()
	})

	ginkgo.It("should ask the policy for a victim when full", func() {
		warmUp()

		policy.EXPECT().Allocate().Return(2)
		policy.EXPECT().Hit(2)

		c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x50,
			Data:    11,
			Commit:  true,
		})
		c.Commit()

		_, found := c.Probe(0x30)
		Expect(found).To(BeFalse())
		_, found = c.Probe(0x50)
		Expect(found).To(BeTrue())
	})

	ginkgo.It("should fold events as invalidates, hits, then allocations", func() {
		warmUp()

		gomock.InOrder(
			policy.EXPECT().Invalidate(1),
			policy.EXPECT().Hit(2),
			policy.EXPECT().Hit(1),
		)

		// One step: invalidate 0x20 (way 1), read 0x30 (way 2), and
		// fill a new address that reuses the freed way 1.
		c.Fill(0, FillReq{Enable: true, Address: 0x20, Commit: false})
		c.Read(0, ReadReq{Enable: true, Address: 0x30})
		c.Fill(1, FillReq{
			Enable:  true,
			Address: 0x50,
			Data:    11,
			Commit:  true,
		})
		c.Commit()

		_, found := c.Probe(0x50)
		Expect(found).To(BeTrue())
	})

	ginkgo.It("should drop a fill when the policy victim is already taken", func() {
		warmUp()

		policy.EXPECT().Allocate().Return(3).Times(2)
		policy.EXPECT().Hit(3)

		rsp0 := c.Fill(0, FillReq{
			Enable:  true,
			Address: 0x50,
			Data:    11,
			Commit:  true,
		})
		rsp1 := c.Fill(1, FillReq{
			Enable:  true,
			Address: 0x60,
			Data:    12,
			Commit:  true,
		})
		c.Commit()

		Expect(rsp0.Accepted).To(BeTrue())
		Expect(rsp1.Accepted).To(BeFalse())
	})

	ginkgo.It("should reset the policy with the cache", func() {
		policy.EXPECT().Reset()

		c.Reset()
	})
})

var _ = ginkgo.Describe("Builder", func() {
	ginkgo.It("should reject fewer than 2 ways", func() {
		Expect(func() {
			MakeBuilder().WithWays(1).Build("Cache")
		}).To(Panic())
	})

	ginkgo.It("should reject mismatched eviction ports", func() {
		Expect(func() {
			MakeBuilder().
				WithNumFillPorts(2).
				WithNumEvictionPorts(1).
				Build("Cache")
		}).To(Panic())
	})

	ginkgo.It("should reject missing ports", func() {
		Expect(func() {
			MakeBuilder().WithNumReadPorts(0).Build("Cache")
		}).To(Panic())
		Expect(func() {
			MakeBuilder().WithNumFillPorts(0).Build("Cache")
		}).To(Panic())
	})

	ginkgo.It("should reject a nil policy factory", func() {
		Expect(func() {
			MakeBuilder().WithPolicyFactory(nil).Build("Cache")
		}).To(Panic())
	})
})
