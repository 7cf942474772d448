// Package record provides Document, an XML-backed record used by the bundled
// record sources and command line agents.
//
// The object type of a document is the name of its root element. Every element
// text and attribute below the root is addressable by a slash path, which is what
// query conditions compare against:
//
//	doc, _ := record.Parse([]byte(`<StudentPersonal RefId="D3E34B35">
//	    <Name Type="04"><LastName>Smith</LastName></Name>
//	</StudentPersonal>`))
//
//	doc.RefID()                    // "D3E34B35"
//	doc.Field("Name/LastName")     // "Smith", true
//	doc.Field("Name/@Type")        // "04", true
//
// Build goes the other way, from paths to XML, and is how row-based sources turn
// database columns into records.
package record
