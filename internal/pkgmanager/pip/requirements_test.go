package pip_test

import (
	"testing/fstest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bottles-dev/bottles/internal/pkgmanager/pip"
)

var _ = Describe("ParseRequirementsFile", func() {
	It("parses plain names, pinned versions, extras and markers", func() {
		fsys := fstest.MapFS{
			"requirements.txt": &fstest.MapFile{Data: []byte(
				"requests==2.31.0\n" +
					"flask[async]>=2.0; python_version >= \"3.10\"\n" +
					"# a comment\n" +
					"\n" +
					"numpy\n",
			)},
		}

		reqs, err := pip.ParseRequirementsFile(fsys, "requirements.txt", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reqs).To(HaveLen(3))

		Expect(reqs[0].Name).To(Equal("requests"))
		Expect(reqs[0].Spec.Operator).To(Equal("=="))

		Expect(reqs[1].Name).To(Equal("flask"))
		Expect(reqs[1].Extras).To(ContainElement("async"))
		Expect(reqs[1].Marker).To(ContainSubstring("python_version"))

		Expect(reqs[2].Name).To(Equal("numpy"))
	})

	It("follows -r includes recursively and is cycle-safe", func() {
		fsys := fstest.MapFS{
			"base.txt": &fstest.MapFile{Data: []byte("-r more.txt\nrequests\n")},
			"more.txt": &fstest.MapFile{Data: []byte("-r base.txt\nflask\n")},
		}

		reqs, err := pip.ParseRequirementsFile(fsys, "base.txt", nil)
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, r := range reqs {
			names = append(names, r.Name)
		}
		Expect(names).To(ConsistOf("flask", "requests"))
	})

	It("keeps VCS and editable specifiers opaque instead of erroring", func() {
		fsys := fstest.MapFS{
			"requirements.txt": &fstest.MapFile{Data: []byte(
				"-e ./local-pkg\n" +
					"git+https://github.com/org/repo.git@main#egg=repo\n",
			)},
		}

		reqs, err := pip.ParseRequirementsFile(fsys, "requirements.txt", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reqs).To(HaveLen(2))
		for _, r := range reqs {
			Expect(r.Spec.IsOpaque).To(BeTrue())
		}
	})
})
