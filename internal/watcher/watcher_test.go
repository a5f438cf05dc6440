package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Start", func() {
	var (
		root   string
		cfg    Config
		ctx    context.Context
		cancel context.CancelFunc
		paths  <-chan string
		err    error
	)

	write := func(path string) {
		Expect(os.WriteFile(path, []byte("image"), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		cfg = Config{Roots: []string{root}, Debounce: 50 * time.Millisecond}
		ctx, cancel = context.WithCancel(context.Background())
	})

	JustBeforeEach(func() {
		paths, _, err = Start(ctx, cfg)
	})

	AfterEach(func() {
		cancel()
	})

	When("a new image appears", func() {
		It("emits its path", func() {
			Expect(err).NotTo(HaveOccurred())
			write(filepath.Join(root, "coupon.png"))
			Eventually(paths).Should(Receive(Equal(filepath.Join(root, "coupon.png"))))
		})
	})

	When("the file is not an image", func() {
		It("ignores it", func() {
			Expect(err).NotTo(HaveOccurred())
			write(filepath.Join(root, "notes.txt"))
			Consistently(paths, 200*time.Millisecond).ShouldNot(Receive())
		})
	})

	When("an image is written several times in a burst", func() {
		It("emits it once", func() {
			Expect(err).NotTo(HaveOccurred())
			p := filepath.Join(root, "burst.jpg")
			for range 3 {
				write(p)
			}
			Eventually(paths).Should(Receive(Equal(p)))
			Consistently(paths, 200*time.Millisecond).ShouldNot(Receive())
		})
	})

	When("a directory is created under the root", func() {
		It("watches it too", func() {
			Expect(err).NotTo(HaveOccurred())
			sub := filepath.Join(root, "2024")
			Expect(os.Mkdir(sub, 0755)).To(Succeed())
			write(filepath.Join(sub, "nested.png"))
			Eventually(paths).Should(Receive(Equal(filepath.Join(sub, "nested.png"))))
		})
	})

	When("an initial scan is requested", func() {
		BeforeEach(func() {
			cfg.InitialScan = true
			write(filepath.Join(root, "old.heic"))
			write(filepath.Join(root, "old.txt"))
		})

		It("emits the existing images", func() {
			Expect(err).NotTo(HaveOccurred())
			Eventually(paths).Should(Receive(Equal(filepath.Join(root, "old.heic"))))
			Consistently(paths, 100*time.Millisecond).ShouldNot(Receive())
		})
	})

	When("custom extensions are given", func() {
		BeforeEach(func() {
			cfg.AllowedExts = map[string]struct{}{"gif": {}}
		})

		It("only emits those", func() {
			Expect(err).NotTo(HaveOccurred())
			write(filepath.Join(root, "a.png"))
			write(filepath.Join(root, "b.GIF"))
			Eventually(paths).Should(Receive(Equal(filepath.Join(root, "b.GIF"))))
		})
	})

	When("the context is cancelled", func() {
		It("closes the path channel", func() {
			Expect(err).NotTo(HaveOccurred())
			cancel()
			Eventually(paths).Should(BeClosed())
		})
	})

	When("no roots are given", func() {
		BeforeEach(func() {
			cfg.Roots = nil
		})

		It("returns an error", func() {
			Expect(err).To(MatchError("no roots provided"))
		})
	})

	When("a root does not exist", func() {
		BeforeEach(func() {
			cfg.Roots = []string{filepath.Join(root, "missing")}
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
