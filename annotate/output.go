// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package annotate

import (
	"io"

	"github.com/grailbio/base/tsv"
)

// WriteRows writes rows to w as "name<TAB>label" lines.  If hasHeader is set,
// header is written first, verbatim.
func WriteRows(w io.Writer, header string, hasHeader bool, rows []Row) (err error) {
	tsvw := tsv.NewWriter(w)
	if hasHeader {
		tsvw.WriteString(header)
		if err = tsvw.EndLine(); err != nil {
			return
		}
	}
	for _, r := range rows {
		tsvw.WriteString(r.Name)
		tsvw.WriteString(r.Label)
		if err = tsvw.EndLine(); err != nil {
			return
		}
	}
	return tsvw.Flush()
}
