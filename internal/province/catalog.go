// Package province holds the canonical Thai province catalog and the
// edit-distance matcher used to correct recognized province text.
package province

// Catalog is an ordered list of canonical province names. Order matters:
// matching ties resolve to the earliest entry.
type Catalog []string

// Thai lists the province names plates are matched against, in catalog order.
// It holds 73 names: the list the recognition model was deployed with, which
// leaves out นนทบุรี, พระนครศรีอยุธยา, สตูล and อุตรดิตถ์.
var Thai = Catalog{
	"กรุงเทพมหานคร", "กระบี่", "กาญจนบุรี", "กาฬสินธุ์", "กำแพงเพชร", "ขอนแก่น", "จันทบุรี", "ฉะเชิงเทรา",
	"ชลบุรี", "ชัยนาท", "ชัยภูมิ", "ชุมพร", "เชียงราย", "เชียงใหม่", "ตรัง", "ตราด", "ตาก", "นครนายก",
	"นครปฐม", "นครพนม", "นครราชสีมา", "นครศรีธรรมราช", "นครสวรรค์", "นราธิวาส", "น่าน", "บึงกาฬ",
	"บุรีรัมย์", "ปทุมธานี", "ประจวบคีรีขันธ์", "ปราจีนบุรี", "ปัตตานี", "พะเยา", "พังงา", "พัทลุง",
	"พิจิตร", "พิษณุโลก", "เพชรบูรณ์", "เพชรบุรี", "แพร่", "ภูเก็ต", "มหาสารคาม", "มุกดาหาร", "แม่ฮ่องสอน",
	"ยโสธร", "ยะลา", "ร้อยเอ็ด", "ระนอง", "ระยอง", "ราชบุรี", "ลพบุรี", "ลำปาง", "ลำพูน", "เลย",
	"ศรีสะเกษ", "สกลนคร", "สงขลา", "สมุทรปราการ", "สมุทรสงคราม", "สมุทรสาคร", "สระแก้ว", "สระบุรี",
	"สิงห์บุรี", "สุโขทัย", "สุพรรณบุรี", "สุราษฎร์ธานี", "สุรินทร์", "หนองคาย", "หนองบัวลำภู", "อำนาจเจริญ",
	"อุดรธานี", "อุทัยธานี", "อุบลราชธานี", "อ่างทอง",
}

// Len returns the number of entries.
func (c Catalog) Len() int { return len(c) }

// Contains reports whether name is an exact catalog entry.
func (c Catalog) Contains(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns a copy of the entries so callers cannot mutate the catalog.
func (c Catalog) Names() []string {
	out := make([]string, len(c))
	copy(out, c)
	return out
}
