package textlayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsInvisiblesAndFences(t *testing.T) {
	raw := "```python\r\nimport os\u200b\r\nimport math\u2060\r\ndef main(a, b, c):\u00a0\r\n    pass\ufeff\r\n```"
	assert.Equal(t, "import os\nimport math\ndef main(a, b, c):\n    pass", Sanitize(raw))
}

func TestSanitizeKeepsTabsAndDropsControls(t *testing.T) {
	assert.Equal(t, "a\tb\nc", Sanitize("a\tb\x07\nc\x00"))
	assert.Equal(t, "", Sanitize("```\n```"))
}

func TestStripMainGuard(t *testing.T) {
	src := "def main(a, b, c):\n    pass\n\nif __name__ == '__main__':\n    main('x', 'y', 'z')\n"
	assert.Equal(t, "def main(a, b, c):\n    pass", stripMainGuard(src))
	assert.Equal(t, "x = 1", stripMainGuard("x = 1"))
}

func TestCheckScriptAllowList(t *testing.T) {
	ok := `import os, math
from PIL import Image, ImageFilter
import cairo
from PIL.Image import Resampling
from os import path

def main(input_image_path, output_image_path, user_prompt):
    label = "# not a comment"  # real comment with subprocess
    name = os.path.basename(input_image_path); size = 12
    img = Image.open(input_image_path)
    with open(output_image_path, "wb") as f:
        f.write(b"")
    return label
`
	require.NoError(t, CheckScript(ok))

	rejected := map[string]string{
		"subprocess":         "import subprocess\n",
		"from numpy":         "from numpy import array\n",
		"aliased":            "import os, socket as s\n",
		"dunder":             "m = __import__('os')\n",
		"exec":               "exec('print(1)')\n",
		"eval":               "x = eval('1+1')\n",
		"os.system":          "import os\nos.system('rm -rf /')\n",
		"os.remove":          "import os\nos.remove(input_image_path)\n",
		"importlib":          "import importlib\n",
		"indented":           "def main(a, b, c):\n    import requests\n",
		"after semicolon":    "x = 1; import urllib.request\n",
		"from os system":     "from os import system\nsystem('id')\n",
		"os alias":           "import os as o\no.system('id')\n",
		"os passed as value": "import os\nm = os\n",
		"getattr":            "import os\ngetattr(os,'sys'+'tem')('id')\n",
		"globals":            "globals()['x'] = 1\n",
		"vars":               "v = vars()\n",
		"builtins":           "b = __builtins__\n",
		"breakpoint":         "breakpoint()\n",
		"open other path":    "data = open('/etc/passwd').read()\n",
		"environ":            "import os\nkey = os.environ['API_KEY']\n",
	}
	for name, src := range rejected {
		err := CheckScript(src)
		var violation *SandboxViolation
		assert.ErrorAs(t, err, &violation, name)
	}
}
